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
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// WGS84WKT 目标坐标系，用 WKT 定义以避免依赖 EPSG 数据库
const WGS84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

const (
	EPSGWGS84    = 4326
	EPSGCGCS2000 = 4490
)

// NeedsTransform 判断是否需要转换到 WGS84。
// 没有坐标系时假定已是 WGS84；CGCS2000 视同 WGS84。
// 无法识别权威代码时按 0 处理，即需要转换。
func NeedsTransform(ref SpatialRef) bool {
	if ref == nil {
		return false
	}
	code, _ := ref.AuthorityCode()
	return code != EPSGWGS84 && code != EPSGCGCS2000
}

// CrsNormalizer 检测图层坐标系并按需构造到 WGS84 的转换
type CrsNormalizer struct {
	engine Engine
	log    zerolog.Logger
}

func NewCrsNormalizer(engine Engine, log zerolog.Logger) *CrsNormalizer {
	return &CrsNormalizer{engine: engine, log: log}
}

// Reprojection 单个图层到 WGS84 的转换，transform 为 nil 时为恒等转换
type Reprojection struct {
	transform Transform
	refs      []SpatialRef
}

// Needed 是否会实际转换坐标
func (r *Reprojection) Needed() bool { return r != nil && r.transform != nil }

// Prepare 为图层构造转换。构造坐标系或转换失败返回 KindInvalidFormat
func (n *CrsNormalizer) Prepare(layer Layer) (*Reprojection, error) {
	src, ok := layer.SpatialRef()
	if !ok || src == nil {
		n.log.Warn().Str("layer", layer.Name()).Msg("未检测到坐标系，假定为 WGS84")
		return &Reprojection{}, nil
	}

	code, _ := src.AuthorityCode()
	needs := NeedsTransform(src)
	n.log.Info().Str("layer", layer.Name()).Int("epsg", code).Bool("needs_transform", needs).Msg("源坐标系")
	if !needs {
		src.Close()
		return &Reprojection{}, nil
	}
	return n.build(src)
}

func (n *CrsNormalizer) build(src SpatialRef) (*Reprojection, error) {
	r := &Reprojection{}
	dst, err := n.engine.SpatialRefFromWKT(WGS84WKT)
	if err != nil {
		if src != nil {
			src.Close()
		}
		return nil, formatError(err, "创建WGS84坐标系失败")
	}
	dst.UseTraditionalAxisOrder()
	r.refs = append(r.refs, dst)

	if src == nil {
		src, err = n.engine.SpatialRefFromWKT(WGS84WKT)
		if err != nil {
			r.Close()
			return nil, formatError(err, "创建默认WGS84坐标系失败")
		}
	}
	src.UseTraditionalAxisOrder()
	r.refs = append(r.refs, src)

	t, err := n.engine.NewTransform(src, dst)
	if err != nil {
		r.Close()
		n.log.Error().Err(err).Msg("创建坐标转换失败")
		return nil, formatError(err, "创建坐标转换失败")
	}
	r.transform = t
	return r, nil
}

// Extent 转换范围：转换四个角点后重新求外包框
func (r *Reprojection) Extent(e Extent) (Extent, error) {
	if !r.Needed() {
		return e, nil
	}
	xs := []float64{e.MinX, e.MaxX, e.MinX, e.MaxX}
	ys := []float64{e.MinY, e.MinY, e.MaxY, e.MaxY}
	if err := r.transform.TransformPoints(xs, ys); err != nil {
		return Extent{}, formatError(err, "范围坐标转换失败")
	}
	corners := make(orb.MultiPoint, len(xs))
	for i := range xs {
		corners[i] = orb.Point{xs[i], ys[i]}
	}
	return ExtentFromBound(corners.Bound()), nil
}

// Geometry 克隆几何并转换，源几何不会被修改。调用方负责 Close 返回值
func (r *Reprojection) Geometry(g NativeGeometry) (NativeGeometry, error) {
	if g == nil {
		return nil, nil
	}
	owned := g.Clone()
	if owned == nil {
		return nil, formatError(nil, "克隆几何失败")
	}
	if r.Needed() {
		if err := owned.Transform(r.transform); err != nil {
			owned.Close()
			return nil, formatError(err, "坐标转换失败")
		}
	}
	return owned, nil
}

func (r *Reprojection) Close() {
	if r == nil {
		return
	}
	if r.transform != nil {
		r.transform.Close()
		r.transform = nil
	}
	for _, ref := range r.refs {
		ref.Close()
	}
	r.refs = nil
}

// TransformPoints 在任意两个坐标系之间转换点，两端均使用传统 GIS 轴顺序
func TransformPoints(engine Engine, from, to string, points []orb.Point) ([]orb.Point, error) {
	src, err := engine.SpatialRefFromDefinition(from)
	if err != nil {
		return nil, formatError(err, "源坐标系无效")
	}
	defer src.Close()
	dst, err := engine.SpatialRefFromDefinition(to)
	if err != nil {
		return nil, formatError(err, "目标坐标系无效")
	}
	defer dst.Close()
	src.UseTraditionalAxisOrder()
	dst.UseTraditionalAxisOrder()

	t, err := engine.NewTransform(src, dst)
	if err != nil {
		return nil, formatError(err, "创建坐标转换失败")
	}
	defer t.Close()

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p[0], p[1]
	}
	if len(points) > 0 {
		if err := t.TransformPoints(xs, ys); err != nil {
			return nil, formatError(err, "坐标转换失败")
		}
	}
	out := make([]orb.Point, len(points))
	for i := range points {
		out[i] = orb.Point{xs[i], ys[i]}
	}
	return out, nil
}
