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
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
)

// Environment 诊断时报告的数据目录
type Environment struct {
	GDALData string
	ProjLib  string
	ProjData string
}

// EnvironmentFromOS 从进程环境变量读取
func EnvironmentFromOS() Environment {
	return Environment{
		GDALData: os.Getenv("GDAL_DATA"),
		ProjLib:  os.Getenv("PROJ_LIB"),
		ProjData: os.Getenv("PROJ_DATA"),
	}
}

// ProjDBChecker 检查 proj.db，layout 为库结构版本
type ProjDBChecker interface {
	Check(path string) (layout string, ok bool)
}

// Service 对外提供全部矢量查询与导出操作。每个请求独立打开并释放自己的句柄
type Service struct {
	engine        Engine
	log           zerolog.Logger
	observer      Observer
	cache         SummaryCache
	runner        Runner
	appDir        string
	pool          *Pool
	exportTimeout time.Duration
	env           *Environment
	projDB        ProjDBChecker

	resolver   *EncodingResolver
	opener     *DatasetOpener
	normalizer *CrsNormalizer
	inspector  *MultiLayerInspector
	exporter   *VectorExporter
	locator    *ToolLocator
}

type Option func(*Service)

func WithLogger(log zerolog.Logger) Option { return func(s *Service) { s.log = log } }

func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

// WithCache 启用摘要缓存，nil 表示不缓存
func WithCache(c SummaryCache) Option { return func(s *Service) { s.cache = c } }

func WithRunner(r Runner) Option { return func(s *Service) { s.runner = r } }

// WithAppDir 应用目录，用于查找 ogr2ogr
func WithAppDir(dir string) Option { return func(s *Service) { s.appDir = dir } }

func WithToolLocator(l *ToolLocator) Option { return func(s *Service) { s.locator = l } }

func WithPool(p *Pool) Option { return func(s *Service) { s.pool = p } }

// WithExportTimeout 0 表示不限时
func WithExportTimeout(d time.Duration) Option { return func(s *Service) { s.exportTimeout = d } }

func WithEnvironment(env Environment) Option { return func(s *Service) { s.env = &env } }

func WithProjDBChecker(c ProjDBChecker) Option { return func(s *Service) { s.projDB = c } }

func NewService(engine Engine, opts ...Option) *Service {
	s := &Service{engine: engine, log: zerolog.Nop(), observer: NopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = NewPool(0)
	}
	if s.locator == nil {
		s.locator = NewToolLocator(s.appDir, s.log)
	}
	s.resolver = NewEncodingResolver(s.log)
	s.opener = NewDatasetOpener(engine, s.resolver, s.observer, s.log)
	s.normalizer = NewCrsNormalizer(engine, s.log)
	s.inspector = NewMultiLayerInspector(s.normalizer, s.observer, s.log)
	s.exporter = NewVectorExporter(s.opener, s.locator, s.runner, s.pool, s.observer, s.exportTimeout, s.log)
	return s
}

// guard converts a panic in a public operation into an Unknown error.
func (s *Service) guard(op string, err *error) {
	if r := recover(); r != nil {
		s.log.Error().Str("op", op).Interface("panic", r).Msg("操作发生异常")
		*err = recoverError(op, r)
	}
}

// withDataset 在工作槽内打开数据集，fn 返回后释放
func (s *Service) withDataset(ctx context.Context, path string, fn func(ds Dataset) error) error {
	return s.pool.Do(ctx, func() error {
		ds, err := s.opener.Open(path)
		if err != nil {
			return err
		}
		defer ds.Close()
		return fn(ds)
	})
}

func (s *Service) withLayer(ctx context.Context, path string, index int, fn func(layer Layer) error) error {
	return s.withDataset(ctx, path, func(ds Dataset) error {
		layer, err := ds.Layer(index)
		if err != nil {
			return readError(err, "无法读取图层 %d", index)
		}
		return fn(layer)
	})
}

func (s *Service) cached(kind, path string) (string, interface{}, bool) {
	if s.cache == nil {
		return "", nil, false
	}
	key, ok := SummaryKey(kind, path)
	if !ok {
		return "", nil, false
	}
	v, hit := s.cache.Get(key)
	s.observer.CacheLookup(hit)
	return key, v, hit
}

// Info 读取第一个图层的信息，范围归一化到 WGS84
func (s *Service) Info(ctx context.Context, path string) (info *VectorInfo, err error) {
	defer s.guard("Info", &err)

	key, v, hit := s.cached("info", path)
	if cachedInfo, ok := v.(*VectorInfo); hit && ok {
		return cachedInfo.Clone(), nil
	}

	err = s.withLayer(ctx, path, 0, func(layer Layer) error {
		envelope, err := layer.Extent()
		if err != nil {
			return readError(err, "无法获取范围")
		}
		reproj, err := s.normalizer.Prepare(layer)
		if err != nil {
			return err
		}
		defer reproj.Close()
		extent, err := reproj.Extent(envelope)
		if err != nil {
			return err
		}
		if reproj.Needed() {
			s.log.Info().Interface("extent", extent).Msg("范围已转换到 WGS84 (经度,纬度)")
		}

		info = &VectorInfo{
			Path:         path,
			FeatureCount: layer.FeatureCount(),
			GeometryType: firstGeometryType(layer),
			Fields:       Descriptors(layer.Fields()),
			Extent:       extent,
			Projection:   projectionOf(layer),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.cache.Put(key, info.Clone())
	}
	return info, nil
}

// MultiLayerInfo 读取所有图层的信息
func (s *Service) MultiLayerInfo(ctx context.Context, path string) (info *MultiLayerVectorInfo, err error) {
	defer s.guard("MultiLayerInfo", &err)

	key, v, hit := s.cached("layers", path)
	if cachedInfo, ok := v.(*MultiLayerVectorInfo); hit && ok {
		return cachedInfo.Clone(), nil
	}

	err = s.withDataset(ctx, path, func(ds Dataset) error {
		var err error
		info, err = s.inspector.Inspect(path, ds)
		return err
	})
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.cache.Put(key, info.Clone())
	}
	return info, nil
}

// FeatureCount 第一个图层的要素总数
func (s *Service) FeatureCount(ctx context.Context, path string) (count int, err error) {
	defer s.guard("FeatureCount", &err)
	err = s.withLayer(ctx, path, 0, func(layer Layer) error {
		count = layer.FeatureCount()
		return nil
	})
	return count, err
}

func (s *Service) page(ctx context.Context, path string, page Page, includeGeometry bool, total *int) ([]Feature, error) {
	var out []Feature
	err := s.withLayer(ctx, path, 0, func(layer Layer) error {
		if total != nil {
			*total = layer.FeatureCount()
		}
		reproj := &Reprojection{}
		if includeGeometry {
			var err error
			if reproj, err = s.normalizer.Prepare(layer); err != nil {
				return err
			}
		}
		defer reproj.Close()
		extract := NewAttributeExtractor(layer.Fields(), path, s.log)
		var err error
		out, err = NewFeaturePager(reproj, extract).Page(layer, page, includeGeometry)
		return err
	})
	return out, err
}

// Features 分页读取属性，几何为 Null
func (s *Service) Features(ctx context.Context, path string, page Page) (features []Feature, err error) {
	defer s.guard("Features", &err)
	return s.page(ctx, path, page, false, nil)
}

// FeaturesWithGeometry 分页读取属性与 WGS84 几何
func (s *Service) FeaturesWithGeometry(ctx context.Context, path string, page Page) (features []Feature, err error) {
	defer s.guard("FeaturesWithGeometry", &err)
	return s.page(ctx, path, page, true, nil)
}

// AttributeTable 分页属性表，Total 为图层要素总数
func (s *Service) AttributeTable(ctx context.Context, path string, page Page) (table *AttributeTable, err error) {
	defer s.guard("AttributeTable", &err)
	var total int
	features, err := s.page(ctx, path, page, true, &total)
	if err != nil {
		return nil, err
	}
	table = &AttributeTable{Features: make([]AttributeRow, 0, len(features)), Total: total}
	for _, f := range features {
		row := AttributeRow{
			ID:         f.ID,
			Properties: f.Properties,
			Geometry:   RowGeometry{Type: f.Geometry.GeomType, Coordinates: f.Geometry.Coordinates},
		}
		if f.Geometry.Geometries != nil {
			row.Geometry.Coordinates = f.Geometry.Geometries
		}
		table.Features = append(table.Features, row)
	}
	s.log.Info().Str("path", path).Int("total", total).Int("rows", len(table.Features)).Msg("读取属性表")
	return table, nil
}

// GeoJSON 第一个图层转为 WGS84 FeatureCollection
func (s *Service) GeoJSON(ctx context.Context, path string) (fc *geojson.FeatureCollection, err error) {
	defer s.guard("GeoJSON", &err)
	return s.layerGeoJSON(ctx, path, 0)
}

// LayerGeoJSON 指定图层转为 WGS84 FeatureCollection
func (s *Service) LayerGeoJSON(ctx context.Context, path string, index int) (fc *geojson.FeatureCollection, err error) {
	defer s.guard("LayerGeoJSON", &err)
	return s.layerGeoJSON(ctx, path, index)
}

func (s *Service) layerGeoJSON(ctx context.Context, path string, index int) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	err := s.withLayer(ctx, path, index, func(layer Layer) error {
		reproj, err := s.normalizer.Prepare(layer)
		if err != nil {
			return err
		}
		defer reproj.Close()
		pager := NewFeaturePager(reproj, NewAttributeExtractor(layer.Fields(), path, s.log))
		return pager.Walk(layer, Page{}, func(_ int, f NativeFeature) error {
			// orb/geojson 只有二维坐标，FeatureCollection 不带 Z
			g, _, err := pager.orbGeometry(f)
			if err != nil {
				return err
			}
			gf := geojson.NewFeature(g)
			gf.ID = int64(0)
			if fid := f.FID(); fid >= 0 {
				gf.ID = fid
			}
			gf.Properties = pager.extract.Properties(f).Map()
			fc.Append(gf)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// TransformCoordinates 在两个坐标系之间转换点
func (s *Service) TransformCoordinates(ctx context.Context, from, to string, points []orb.Point) (out []orb.Point, err error) {
	defer s.guard("TransformCoordinates", &err)
	s.log.Info().Str("from", from).Str("to", to).Int("points", len(points)).Msg("坐标转换")
	err = s.pool.Do(ctx, func() error {
		var err error
		out, err = TransformPoints(s.engine, from, to, points)
		return err
	})
	return out, err
}

// Drivers 已注册驱动的长名称
func (s *Service) Drivers() []string { return s.engine.Drivers() }

func (s *Service) Version() string { return s.engine.Version() }

const notSet = "未设置"

// Diagnose 汇报驱动数量、数据目录与 proj.db 状态
func (s *Service) Diagnose(ctx context.Context) (d *Diagnostics, err error) {
	defer s.guard("Diagnose", &err)

	env := EnvironmentFromOS()
	if s.env != nil {
		env = *s.env
	}
	orNotSet := func(v string) string {
		if v == "" {
			return notSet
		}
		return v
	}

	drivers := s.engine.Drivers()
	d = &Diagnostics{
		Version:     s.engine.Version(),
		GDALData:    orNotSet(env.GDALData),
		ProjLib:     orNotSet(env.ProjLib),
		ProjData:    orNotSet(env.ProjData),
		ProjDBPath:  "N/A",
		DriverCount: len(drivers),
		Drivers:     drivers,
	}
	if len(d.Drivers) > 10 {
		d.Drivers = d.Drivers[:10]
	}
	if env.ProjLib != "" {
		d.ProjDBPath = filepath.Join(env.ProjLib, "proj.db")
		if st, statErr := os.Stat(d.ProjDBPath); statErr == nil && !st.IsDir() {
			d.ProjDBExists = true
			if s.projDB != nil {
				if layout, ok := s.projDB.Check(d.ProjDBPath); ok {
					d.ProjDBLayout = layout
				}
			}
		}
	}

	s.log.Info().
		Str("gdal_data", d.GDALData).
		Str("proj_lib", d.ProjLib).
		Str("proj_data", d.ProjData).
		Bool("proj_db_exists", d.ProjDBExists).
		Int("driver_count", d.DriverCount).
		Msg("GDAL诊断信息")
	return d, nil
}

// Export 调用 ogr2ogr 导出
func (s *Service) Export(ctx context.Context, req ExportRequest) (err error) {
	defer s.guard("Export", &err)
	return s.exporter.Export(ctx, req)
}
