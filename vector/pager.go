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
	"strconv"

	"github.com/paulmach/orb"
)

// Page 分页窗口。Limit 为 0 表示不限
type Page struct {
	Offset int
	Limit  int
}

// contains reports whether the idx-th feature falls in the window, and
// whether iteration can stop.
func (p Page) contains(idx int) (in bool, done bool) {
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	if idx < offset {
		return false, false
	}
	if p.Limit > 0 && idx-offset >= p.Limit {
		return false, true
	}
	return true, false
}

// FeaturePager 按分页窗口遍历图层要素
type FeaturePager struct {
	reproj  *Reprojection
	extract *AttributeExtractor
}

func NewFeaturePager(reproj *Reprojection, extract *AttributeExtractor) *FeaturePager {
	return &FeaturePager{reproj: reproj, extract: extract}
}

// Walk 以存储顺序遍历窗口内的要素。fn 返回后要素即被释放
func (p *FeaturePager) Walk(layer Layer, page Page, fn func(idx int, f NativeFeature) error) error {
	layer.ResetReading()
	for idx := 0; ; idx++ {
		f := layer.NextFeature()
		if f == nil {
			return nil
		}
		in, done := page.contains(idx)
		if done {
			f.Close()
			return nil
		}
		if !in {
			f.Close()
			continue
		}
		err := fn(idx, f)
		f.Close()
		if err != nil {
			return err
		}
	}
}

// Page 返回窗口内的要素，includeGeometry 为 false 时几何为 Null
func (p *FeaturePager) Page(layer Layer, page Page, includeGeometry bool) ([]Feature, error) {
	out := make([]Feature, 0)
	err := p.Walk(layer, page, func(idx int, f NativeFeature) error {
		feat := Feature{
			ID:         featureID(f, idx),
			Geometry:   NullGeometry(),
			Properties: p.extract.Properties(f),
		}
		if includeGeometry {
			g, zs, err := p.orbGeometry(f)
			if err != nil {
				return err
			}
			feat.Geometry = GeometryWithZ(g, zs)
		}
		out = append(out, feat)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// orbGeometry 克隆、转换并输出 orb 几何，几何带 Z 时一并返回高程；
// 没有几何时返回 nil
func (p *FeaturePager) orbGeometry(f NativeFeature) (orb.Geometry, []float64, error) {
	src := f.Geometry()
	if src == nil {
		return nil, nil, nil
	}
	owned, err := p.reproj.Geometry(src)
	if err != nil {
		return nil, nil, err
	}
	defer owned.Close()
	g, err := owned.Orb()
	if err != nil {
		return nil, nil, formatError(err, "几何转换失败")
	}
	var zs []float64
	if zg, ok := owned.(ZGeometry); ok {
		zs = zg.Zs()
	}
	return g, zs, nil
}

func featureID(f NativeFeature, idx int) string {
	if fid := f.FID(); fid >= 0 {
		return strconv.FormatInt(fid, 10)
	}
	return strconv.Itoa(idx)
}
