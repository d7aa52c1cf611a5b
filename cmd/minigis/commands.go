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
package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/xiaofuX1/MiniGIS/internal/api"
	"github.com/xiaofuX1/MiniGIS/vector"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var metricsHandler http.Handler
			if a.cfg.MetricsEnabled {
				metricsHandler = a.metrics.Handler()
			}
			router := api.NewRouter(a.svc, a.log.With().Str("component", "http").Logger(), metricsHandler)
			return api.Run(cmd.Context(), a.cfg.Addr, router, a.log)
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "读取第一个图层的要素数、字段、范围与坐标系",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func() (interface{}, error) {
				return a.svc.Info(cmd.Context(), args[0])
			})
		},
	}
}

func newLayersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layers <path>",
		Short: "列出多图层文件中每个图层的信息",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func() (interface{}, error) {
				return a.svc.MultiLayerInfo(cmd.Context(), args[0])
			})
		},
	}
}

func newFeaturesCmd(a *app) *cobra.Command {
	var (
		page         vector.Page
		withGeometry bool
		countOnly    bool
	)
	cmd := &cobra.Command{
		Use:   "features <path>",
		Short: "分页读取要素",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func() (interface{}, error) {
				switch {
				case countOnly:
					n, err := a.svc.FeatureCount(cmd.Context(), args[0])
					return map[string]int{"count": n}, err
				case withGeometry:
					return a.svc.FeaturesWithGeometry(cmd.Context(), args[0], page)
				default:
					return a.svc.Features(cmd.Context(), args[0], page)
				}
			})
		},
	}
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "起始要素序号")
	cmd.Flags().IntVar(&page.Limit, "limit", 0, "最多返回的要素数，0 表示全部")
	cmd.Flags().BoolVar(&withGeometry, "geometry", false, "同时输出 WGS84 几何")
	cmd.Flags().BoolVar(&countOnly, "count", false, "只输出要素数量")
	return cmd
}

func newTableCmd(a *app) *cobra.Command {
	var page vector.Page
	cmd := &cobra.Command{
		Use:   "table <path>",
		Short: "分页读取属性表",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func() (interface{}, error) {
				return a.svc.AttributeTable(cmd.Context(), args[0], page)
			})
		},
	}
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "起始要素序号")
	cmd.Flags().IntVar(&page.Limit, "limit", 100, "每页要素数，0 表示全部")
	return cmd
}

func newGeoJSONCmd(a *app) *cobra.Command {
	var layer int
	cmd := &cobra.Command{
		Use:   "geojson <path>",
		Short: "输出图层的 WGS84 GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func() (interface{}, error) {
				if cmd.Flags().Changed("layer") {
					return a.svc.LayerGeoJSON(cmd.Context(), args[0], layer)
				}
				return a.svc.GeoJSON(cmd.Context(), args[0])
			})
		},
	}
	cmd.Flags().IntVar(&layer, "layer", 0, "图层索引")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format string
		layer  int
	)
	cmd := &cobra.Command{
		Use:   "export <input> <output>",
		Short: "调用 ogr2ogr 导出为 KML、KMZ、GeoJSON、Shapefile 或 GPKG",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := vector.ExportRequest{InputPath: args[0], OutputPath: args[1], Format: format}
			if cmd.Flags().Changed("layer") {
				req.LayerIndex = &layer
			}
			return a.run(cmd, func() (interface{}, error) {
				if err := a.svc.Export(cmd.Context(), req); err != nil {
					return nil, err
				}
				return req, nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "GeoJSON", "目标格式")
	cmd.Flags().IntVar(&layer, "layer", 0, "只导出指定索引的图层")
	return cmd
}

func newTransformCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "transform x,y [x,y...]",
		Short: "在两个坐标系之间转换坐标",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func() (interface{}, error) {
				return a.svc.TransformCoordinates(cmd.Context(), from, to, points)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "EPSG:4326", "源坐标系，EPSG:xxxx、WKT 或 PROJ 字符串")
	cmd.Flags().StringVar(&to, "to", "EPSG:4326", "目标坐标系")
	return cmd
}

func parsePoints(args []string) ([]orb.Point, error) {
	points := make([]orb.Point, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("坐标格式应为 x,y: %q", arg)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("无效的 x 坐标 %q: %w", parts[0], err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("无效的 y 坐标 %q: %w", parts[1], err)
		}
		points = append(points, orb.Point{x, y})
	}
	return points, nil
}

func newDriversCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "列出已注册的 GDAL 驱动",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func() (interface{}, error) {
				return map[string]interface{}{
					"version": a.svc.Version(),
					"drivers": a.svc.Drivers(),
				}, nil
			})
		},
	}
}

func newDiagnoseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "检查 GDAL 与 PROJ 运行环境",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func() (interface{}, error) {
				return a.svc.Diagnose(cmd.Context())
			})
		},
	}
}
