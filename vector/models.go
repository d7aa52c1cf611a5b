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
	"bytes"
	"encoding/json"

	"github.com/paulmach/orb"
)

// Extent 范围，归一化后为 WGS84 经纬度 (x=经度, y=纬度)
type Extent struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Bound 转换为 orb.Bound
func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}
}

// ExtentFromBound 从 orb.Bound 构造范围
func ExtentFromBound(b orb.Bound) Extent {
	return Extent{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}
}

// FieldDescriptor 字段描述
type FieldDescriptor struct {
	Name      string `json:"name"`
	FieldType string `json:"field_type"`
	Alias     string `json:"alias"`
	Editable  bool   `json:"editable"`
	Visible   bool   `json:"visible"`
}

// VectorInfo 单图层矢量文件信息
type VectorInfo struct {
	Path         string            `json:"path"`
	FeatureCount int               `json:"feature_count"`
	GeometryType string            `json:"geometry_type"`
	Fields       []FieldDescriptor `json:"fields"`
	Extent       Extent            `json:"extent"`
	Projection   *string           `json:"projection"`
}

// LayerInfo 多图层文件中单个图层的信息
type LayerInfo struct {
	Name         string            `json:"name"`
	Index        int               `json:"index"`
	FeatureCount int               `json:"feature_count"`
	GeometryType string            `json:"geometry_type"`
	Fields       []FieldDescriptor `json:"fields"`
	Extent       Extent            `json:"extent"`
}

// MultiLayerVectorInfo 多图层矢量文件信息
type MultiLayerVectorInfo struct {
	Path       string      `json:"path"`
	LayerCount int         `json:"layer_count"`
	Layers     []LayerInfo `json:"layers"`
	Projection *string     `json:"projection"`
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFields(fields []FieldDescriptor) []FieldDescriptor {
	if fields == nil {
		return nil
	}
	return append([]FieldDescriptor(nil), fields...)
}

// Clone 深拷贝，缓存内外不共享切片与指针
func (v *VectorInfo) Clone() *VectorInfo {
	if v == nil {
		return nil
	}
	cp := *v
	cp.Fields = cloneFields(v.Fields)
	cp.Projection = cloneString(v.Projection)
	return &cp
}

func (m *MultiLayerVectorInfo) Clone() *MultiLayerVectorInfo {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Projection = cloneString(m.Projection)
	if m.Layers != nil {
		cp.Layers = make([]LayerInfo, len(m.Layers))
		for i, l := range m.Layers {
			l.Fields = cloneFields(l.Fields)
			cp.Layers[i] = l
		}
	}
	return &cp
}

// Geometry 要素几何。没有几何时为 {"geom_type":"Null","coordinates":null}
type Geometry struct {
	GeomType    string      `json:"geom_type"`
	Coordinates interface{} `json:"coordinates"`
	Geometries  []Geometry  `json:"geometries,omitempty"`
}

// NullGeometry 空几何
func NullGeometry() Geometry {
	return Geometry{GeomType: "Null"}
}

// GeometryFromOrb 将 orb 几何转换为要素几何
func GeometryFromOrb(g orb.Geometry) Geometry {
	if g == nil {
		return NullGeometry()
	}
	if c, ok := g.(orb.Collection); ok {
		members := make([]Geometry, 0, len(c))
		for _, m := range c {
			members = append(members, GeometryFromOrb(m))
		}
		return Geometry{GeomType: c.GeoJSONType(), Geometries: members}
	}
	if b, ok := g.(orb.Bound); ok {
		return Geometry{GeomType: "Polygon", Coordinates: b.ToPolygon()}
	}
	return Geometry{GeomType: g.GeoJSONType(), Coordinates: g}
}

// GeometryWithZ 同 GeometryFromOrb，zs 按坐标遍历顺序给出高程，
// 坐标输出为 [x,y,z]。zs 为空或数量与坐标数不符时输出二维坐标
func GeometryWithZ(g orb.Geometry, zs []float64) Geometry {
	if len(zs) == 0 || coordCount(g) != len(zs) {
		return GeometryFromOrb(g)
	}
	w := &zWalker{zs: zs}
	return w.geometry(g)
}

func coordCount(g orb.Geometry) int {
	switch g := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(g)
	case orb.LineString:
		return len(g)
	case orb.MultiLineString:
		n := 0
		for _, l := range g {
			n += len(l)
		}
		return n
	case orb.Polygon:
		n := 0
		for _, r := range g {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range g {
			n += coordCount(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, m := range g {
			c := coordCount(m)
			if c < 0 {
				return -1
			}
			n += c
		}
		return n
	}
	return -1
}

type zWalker struct {
	zs []float64
	i  int
}

func (w *zWalker) point(p orb.Point) []float64 {
	z := w.zs[w.i]
	w.i++
	return []float64{p[0], p[1], z}
}

func (w *zWalker) points(ps []orb.Point) [][]float64 {
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = w.point(p)
	}
	return out
}

func (w *zWalker) polygon(p orb.Polygon) [][][]float64 {
	out := make([][][]float64, len(p))
	for i, r := range p {
		out[i] = w.points(r)
	}
	return out
}

func (w *zWalker) geometry(g orb.Geometry) Geometry {
	switch g := g.(type) {
	case orb.Point:
		return Geometry{GeomType: "Point", Coordinates: w.point(g)}
	case orb.MultiPoint:
		return Geometry{GeomType: "MultiPoint", Coordinates: w.points(g)}
	case orb.LineString:
		return Geometry{GeomType: "LineString", Coordinates: w.points(g)}
	case orb.MultiLineString:
		lines := make([][][]float64, len(g))
		for i, l := range g {
			lines[i] = w.points(l)
		}
		return Geometry{GeomType: "MultiLineString", Coordinates: lines}
	case orb.Polygon:
		return Geometry{GeomType: "Polygon", Coordinates: w.polygon(g)}
	case orb.MultiPolygon:
		polys := make([][][][]float64, len(g))
		for i, p := range g {
			polys[i] = w.polygon(p)
		}
		return Geometry{GeomType: "MultiPolygon", Coordinates: polys}
	case orb.Collection:
		members := make([]Geometry, 0, len(g))
		for _, m := range g {
			members = append(members, w.geometry(m))
		}
		return Geometry{GeomType: g.GeoJSONType(), Geometries: members}
	}
	return GeometryFromOrb(g)
}

// Feature 要素
type Feature struct {
	ID         string     `json:"id"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Properties 按字段声明顺序保存的属性，同名键后写覆盖先写
type Properties struct {
	keys   []string
	values map[string]interface{}
}

// Set 写入属性，已存在的键保留原位置
func (p *Properties) Set(key string, value interface{}) {
	if p.values == nil {
		p.values = make(map[string]interface{})
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p Properties) Get(key string) (interface{}, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p Properties) Len() int { return len(p.keys) }

// Keys 按顺序返回属性名
func (p Properties) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Map 返回无序副本，用于 geojson.Properties
func (p Properties) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p.keys))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AttributeRow 属性表中的一行
type AttributeRow struct {
	ID         string      `json:"id"`
	Properties Properties  `json:"properties"`
	Geometry   RowGeometry `json:"geometry"`
}

// RowGeometry 属性表行中的几何
type RowGeometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// AttributeTable 分页属性表
type AttributeTable struct {
	Features []AttributeRow `json:"features"`
	Total    int            `json:"total"`
}

// Diagnostics 运行环境诊断信息
type Diagnostics struct {
	Version      string   `json:"version"`
	GDALData     string   `json:"gdal_data"`
	ProjLib      string   `json:"proj_lib"`
	ProjData     string   `json:"proj_data"`
	ProjDBExists bool     `json:"proj_db_exists"`
	ProjDBPath   string   `json:"proj_db_path"`
	ProjDBLayout string   `json:"proj_db_layout,omitempty"`
	DriverCount  int      `json:"driver_count"`
	Drivers      []string `json:"drivers"`
}
