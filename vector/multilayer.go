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
	"github.com/rs/zerolog"
)

// MultiLayerInspector 枚举容器数据集中的所有图层
type MultiLayerInspector struct {
	normalizer *CrsNormalizer
	observer   Observer
	log        zerolog.Logger
}

func NewMultiLayerInspector(normalizer *CrsNormalizer, observer Observer, log zerolog.Logger) *MultiLayerInspector {
	if observer == nil {
		observer = NopObserver{}
	}
	return &MultiLayerInspector{normalizer: normalizer, observer: observer, log: log}
}

// Inspect 读取每个图层的信息。无法访问或无法获取范围的图层被跳过，
// 坐标转换构造失败则整体返回错误
func (m *MultiLayerInspector) Inspect(path string, ds Dataset) (*MultiLayerVectorInfo, error) {
	count := ds.LayerCount()
	m.log.Info().Str("path", path).Int("layer_count", count).Msg("检测到图层")

	info := &MultiLayerVectorInfo{
		Path:       path,
		LayerCount: count,
		Layers:     make([]LayerInfo, 0, count),
	}
	if count > 0 {
		if first, err := ds.Layer(0); err == nil {
			info.Projection = projectionOf(first)
		}
	}

	for i := 0; i < count; i++ {
		layer, err := ds.Layer(i)
		if err != nil {
			m.log.Warn().Err(err).Int("index", i).Msg("无法读取图层，已跳过")
			m.observer.LayerSkipped()
			continue
		}
		name := layer.Name()
		featureCount := layer.FeatureCount()
		m.log.Info().Int("index", i).Str("layer", name).Int("feature_count", featureCount).Msg("处理图层")

		envelope, err := layer.Extent()
		if err != nil {
			m.log.Warn().Err(err).Str("layer", name).Msg("无法获取图层范围，已跳过")
			m.observer.LayerSkipped()
			continue
		}

		extent, err := m.normalizeExtent(layer, envelope)
		if err != nil {
			return nil, err
		}

		info.Layers = append(info.Layers, LayerInfo{
			Name:         name,
			Index:        i,
			FeatureCount: featureCount,
			GeometryType: firstGeometryType(layer),
			Fields:       Descriptors(layer.Fields()),
			Extent:       extent,
		})
	}
	return info, nil
}

func (m *MultiLayerInspector) normalizeExtent(layer Layer, envelope Extent) (Extent, error) {
	reproj, err := m.normalizer.Prepare(layer)
	if err != nil {
		return Extent{}, err
	}
	defer reproj.Close()
	return reproj.Extent(envelope)
}

// firstGeometryType 取第一个要素的几何类型，没有则为 Unknown
func firstGeometryType(layer Layer) string {
	layer.ResetReading()
	defer layer.ResetReading()
	f := layer.NextFeature()
	if f == nil {
		return "Unknown"
	}
	defer f.Close()
	g := f.Geometry()
	if g == nil {
		return "Unknown"
	}
	return g.Type()
}

// projectionOf 图层坐标系的 WKT，没有坐标系时为 nil
func projectionOf(layer Layer) *string {
	ref, ok := layer.SpatialRef()
	if !ok || ref == nil {
		return nil
	}
	defer ref.Close()
	wkt, err := ref.WKT()
	if err != nil || wkt == "" {
		return nil
	}
	return &wkt
}
