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

// Package vectortest 提供内存中的 vector.Engine 实现，用于测试。
// 支持 EPSG:4326、EPSG:4490 与 EPSG:3857 之间的转换。
package vectortest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/xiaofuX1/MiniGIS/vector"
)

// OpenCall 记录一次 Open 调用
type OpenCall struct {
	Path    string
	Options []string
}

// Engine 内存引擎
type Engine struct {
	mu       sync.Mutex
	datasets map[string]*DatasetSpec
	calls    []OpenCall
	open     int

	// Accept 决定某次打开是否成功，nil 表示总是成功
	Accept func(path string, options []string) bool
	// FailTransform 使 NewTransform 失败
	FailTransform bool
	DriverNames   []string
	VersionName   string
}

// DatasetSpec 数据集内容
type DatasetSpec struct {
	Layers []*LayerSpec
	// LayerErrors 按索引使 Layer 调用失败
	LayerErrors map[int]error
}

// LayerSpec 图层内容
type LayerSpec struct {
	Name     string
	Fields   []vector.FieldDefn
	Features []FeatureSpec
	// EPSG 为 0 表示没有坐标系，-1 表示有坐标系但无权威代码
	EPSG      int
	ExtentErr error
	// Extent 为 nil 时由要素几何计算
	Extent *vector.Extent
}

// FeatureSpec 要素内容，FID 为 -1 表示没有 FID
type FeatureSpec struct {
	FID    int64
	Values []vector.FieldValue
	Geom   orb.Geometry
	// Z 按坐标顺序的高程，nil 表示二维
	Z []float64
}

func New() *Engine {
	return &Engine{datasets: make(map[string]*DatasetSpec), VersionName: "fake 1.0"}
}

// Add 注册数据集
func (e *Engine) Add(path string, ds *DatasetSpec) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.datasets[path] = ds
}

// Calls 返回 Open 调用记录
func (e *Engine) Calls() []OpenCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]OpenCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// OpenDatasets 尚未关闭的数据集数量
func (e *Engine) OpenDatasets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

func (e *Engine) Open(path string, options ...string) (vector.Dataset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, OpenCall{Path: path, Options: append([]string(nil), options...)})
	spec, ok := e.datasets[path]
	if !ok {
		return nil, fmt.Errorf("无法打开: %s", path)
	}
	if e.Accept != nil && !e.Accept(path, options) {
		return nil, fmt.Errorf("打开失败: %s %v", path, options)
	}
	e.open++
	return &dataset{engine: e, spec: spec}, nil
}

func (e *Engine) SpatialRefFromWKT(wkt string) (vector.SpatialRef, error) {
	if wkt == vector.WGS84WKT {
		return &SpatialRef{Code: 4326}, nil
	}
	return e.SpatialRefFromDefinition(wkt)
}

func (e *Engine) SpatialRefFromDefinition(def string) (vector.SpatialRef, error) {
	upper := strings.ToUpper(strings.TrimSpace(def))
	if !strings.HasPrefix(upper, "EPSG:") {
		return nil, fmt.Errorf("无法解析坐标系定义: %s", def)
	}
	code, err := strconv.Atoi(strings.TrimPrefix(upper, "EPSG:"))
	if err != nil {
		return nil, err
	}
	return &SpatialRef{Code: code}, nil
}

func (e *Engine) NewTransform(src, dst vector.SpatialRef) (vector.Transform, error) {
	if e.FailTransform {
		return nil, errors.New("transform unavailable")
	}
	s, ok1 := src.(*SpatialRef)
	d, ok2 := dst.(*SpatialRef)
	if !ok1 || !ok2 {
		return nil, errors.New("foreign spatial reference")
	}
	fn, err := projection(s.Code, d.Code)
	if err != nil {
		return nil, err
	}
	return &Transform{fn: fn}, nil
}

func (e *Engine) Drivers() []string { return append([]string(nil), e.DriverNames...) }

func (e *Engine) Version() string { return e.VersionName }

func geographic(code int) bool { return code == 4326 || code == 4490 }

func projection(from, to int) (orb.Projection, error) {
	switch {
	case from == to, geographic(from) && geographic(to):
		return func(p orb.Point) orb.Point { return p }, nil
	case from == 3857 && geographic(to):
		return project.Mercator.ToWGS84, nil
	case geographic(from) && to == 3857:
		return project.WGS84.ToMercator, nil
	}
	return nil, fmt.Errorf("不支持的转换: EPSG:%d -> EPSG:%d", from, to)
}

type dataset struct {
	engine *Engine
	spec   *DatasetSpec
	closed bool
}

func (d *dataset) LayerCount() int { return len(d.spec.Layers) }

func (d *dataset) Layer(index int) (vector.Layer, error) {
	if err, ok := d.spec.LayerErrors[index]; ok {
		return nil, err
	}
	if index < 0 || index >= len(d.spec.Layers) {
		return nil, fmt.Errorf("图层索引越界: %d", index)
	}
	return &layer{spec: d.spec.Layers[index]}, nil
}

func (d *dataset) Close() {
	if d.closed {
		return
	}
	d.closed = true
	d.engine.mu.Lock()
	d.engine.open--
	d.engine.mu.Unlock()
}

type layer struct {
	spec *LayerSpec
	next int
}

func (l *layer) Name() string { return l.spec.Name }
func (l *layer) FeatureCount() int { return len(l.spec.Features) }
func (l *layer) Fields() []vector.FieldDefn { return l.spec.Fields }
func (l *layer) ResetReading() { l.next = 0 }

func (l *layer) SpatialRef() (vector.SpatialRef, bool) {
	switch {
	case l.spec.EPSG == 0:
		return nil, false
	case l.spec.EPSG < 0:
		return &SpatialRef{NoAuthority: true}, true
	}
	return &SpatialRef{Code: l.spec.EPSG}, true
}

func (l *layer) Extent() (vector.Extent, error) {
	if l.spec.ExtentErr != nil {
		return vector.Extent{}, l.spec.ExtentErr
	}
	if l.spec.Extent != nil {
		return *l.spec.Extent, nil
	}
	var b orb.Bound
	first := true
	for _, f := range l.spec.Features {
		if f.Geom == nil {
			continue
		}
		if first {
			b = f.Geom.Bound()
			first = false
			continue
		}
		b = b.Union(f.Geom.Bound())
	}
	return vector.ExtentFromBound(b), nil
}

func (l *layer) NextFeature() vector.NativeFeature {
	if l.next >= len(l.spec.Features) {
		return nil
	}
	f := l.spec.Features[l.next]
	l.next++
	return &feature{spec: f}
}

type feature struct {
	spec FeatureSpec
}

func (f *feature) FID() int64 { return f.spec.FID }

func (f *feature) Field(index int) vector.FieldValue {
	if index < 0 || index >= len(f.spec.Values) {
		return vector.FieldValue{}
	}
	return f.spec.Values[index]
}

func (f *feature) Geometry() vector.NativeGeometry {
	if f.spec.Geom == nil {
		return nil
	}
	// 返回源几何本身，用于验证转换前会先克隆
	return &Geometry{G: f.spec.Geom, Z: f.spec.Z, borrowed: true}
}

func (f *feature) Close() {}

// Geometry 包装 orb 几何，转换只作用于平面坐标
type Geometry struct {
	G        orb.Geometry
	Z        []float64
	borrowed bool
}

func (g *Geometry) Clone() vector.NativeGeometry {
	return &Geometry{G: orb.Clone(g.G), Z: append([]float64(nil), g.Z...)}
}

func (g *Geometry) Zs() []float64 {
	if len(g.Z) == 0 {
		return nil
	}
	return g.Z
}

func (g *Geometry) Transform(t vector.Transform) error {
	if g.borrowed {
		return errors.New("不允许修改源要素的几何")
	}
	ft, ok := t.(*Transform)
	if !ok {
		return errors.New("foreign transform")
	}
	g.G = project.Geometry(g.G, ft.fn)
	return nil
}

func (g *Geometry) Type() string { return g.G.GeoJSONType() }

func (g *Geometry) Orb() (orb.Geometry, error) { return g.G, nil }

func (g *Geometry) Close() {}

// SpatialRef 以 EPSG 代码表示的坐标系
type SpatialRef struct {
	Code        int
	NoAuthority bool
	Traditional bool
}

func (r *SpatialRef) AuthorityCode() (int, bool) {
	if r.NoAuthority {
		return 0, false
	}
	return r.Code, true
}

func (r *SpatialRef) WKT() (string, error) {
	if r.NoAuthority {
		return `LOCAL_CS["unknown"]`, nil
	}
	return fmt.Sprintf(`PROJCS["EPSG:%d",AUTHORITY["EPSG","%d"]]`, r.Code, r.Code), nil
}

func (r *SpatialRef) UseTraditionalAxisOrder() { r.Traditional = true }

func (r *SpatialRef) Close() {}

// Transform 应用 orb.Projection
type Transform struct {
	fn orb.Projection
}

func (t *Transform) TransformPoints(xs, ys []float64) error {
	for i := range xs {
		p := t.fn(orb.Point{xs[i], ys[i]})
		xs[i], ys[i] = p[0], p[1]
	}
	return nil
}

func (t *Transform) Close() {}
