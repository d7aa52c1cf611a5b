/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package vector

import (
	"time"

	"github.com/paulmach/orb"
)

// Engine 矢量几何与坐标系能力。gdal 包提供基于 GDAL/OGR 的实现，
// vectortest 包提供内存实现。
type Engine interface {
	// Open 以只读方式打开矢量数据集，options 为 KEY=VALUE 形式的打开选项
	Open(path string, options ...string) (Dataset, error)
	// SpatialRefFromWKT 从 WKT 构造空间参考
	SpatialRefFromWKT(wkt string) (SpatialRef, error)
	// SpatialRefFromDefinition 接受 EPSG:xxxx、WKT、proj 字符串等任意定义
	SpatialRefFromDefinition(def string) (SpatialRef, error)
	// NewTransform 构造 src 到 dst 的坐标转换
	NewTransform(src, dst SpatialRef) (Transform, error)
	// Drivers 已注册驱动的长名称
	Drivers() []string
	Version() string
}

// Dataset 打开的数据集，调用方负责 Close
type Dataset interface {
	LayerCount() int
	Layer(index int) (Layer, error)
	Close()
}

// Layer 数据集中的图层，生命周期从属于 Dataset
type Layer interface {
	Name() string
	FeatureCount() int
	Fields() []FieldDefn
	// SpatialRef 返回图层坐标系的副本，ok 为 false 表示没有坐标系
	SpatialRef() (ref SpatialRef, ok bool)
	Extent() (Extent, error)
	ResetReading()
	// NextFeature 返回下一个要素，读完返回 nil
	NextFeature() NativeFeature
}

// NativeFeature 原生要素，调用方负责 Close
type NativeFeature interface {
	// FID 返回要素 ID，-1 表示不存在
	FID() int64
	Field(index int) FieldValue
	// Geometry 返回要素几何的引用，没有几何时为 nil；不得就地修改
	Geometry() NativeGeometry
	Close()
}

// NativeGeometry 原生几何对象
type NativeGeometry interface {
	Clone() NativeGeometry
	// Transform 就地转换坐标
	Transform(t Transform) error
	// Type 返回 GeoJSON 风格的类型名，如 Point、MultiPolygon
	Type() string
	Orb() (orb.Geometry, error)
	Close()
}

// ZGeometry 可选能力，三维几何的高程
type ZGeometry interface {
	// Zs 按 Orb 结果的坐标遍历顺序返回 Z 值，二维几何返回 nil
	Zs() []float64
}

// SpatialRef 空间参考
type SpatialRef interface {
	// AuthorityCode 返回权威机构代码，ok 为 false 表示无法识别
	AuthorityCode() (code int, ok bool)
	WKT() (string, error)
	// UseTraditionalAxisOrder 固定轴顺序为 (经度, 纬度)
	UseTraditionalAxisOrder()
	Close()
}

// Transform 坐标转换
type Transform interface {
	// TransformPoints 就地转换坐标数组
	TransformPoints(xs, ys []float64) error
	Close()
}

// FieldDefn 字段定义
type FieldDefn struct {
	Name string
	// Type 原生字段类型名，如 String、Integer64、Real
	Type string
}

// FieldKind 字段值的类型
type FieldKind int

const (
	FieldNull FieldKind = iota
	FieldString
	FieldInteger
	FieldReal
	FieldBoolean
	FieldDate
	FieldDateTime
	FieldTime
	FieldUnsupported
)

// FieldValue 原生字段值
type FieldValue struct {
	Kind FieldKind
	Str  string
	Int  int64
	Real float64
	Bool bool
	Time time.Time
}

func StringValue(s string) FieldValue { return FieldValue{Kind: FieldString, Str: s} }
func IntegerValue(i int64) FieldValue { return FieldValue{Kind: FieldInteger, Int: i} }
func RealValue(f float64) FieldValue { return FieldValue{Kind: FieldReal, Real: f} }
func BooleanValue(b bool) FieldValue { return FieldValue{Kind: FieldBoolean, Bool: b} }
func DateValue(t time.Time) FieldValue { return FieldValue{Kind: FieldDate, Time: t} }
func DateTimeValue(t time.Time) FieldValue { return FieldValue{Kind: FieldDateTime, Time: t} }
func TimeValue(t time.Time) FieldValue { return FieldValue{Kind: FieldTime, Time: t} }
