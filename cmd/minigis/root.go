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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/xiaofuX1/MiniGIS/gdal"
	"github.com/xiaofuX1/MiniGIS/internal/cache"
	"github.com/xiaofuX1/MiniGIS/internal/config"
	"github.com/xiaofuX1/MiniGIS/internal/logger"
	"github.com/xiaofuX1/MiniGIS/internal/metrics"
	"github.com/xiaofuX1/MiniGIS/internal/projdb"
	"github.com/xiaofuX1/MiniGIS/vector"
)

// app 由 PersistentPreRunE 装配，子命令共享
type app struct {
	cfgFile string
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Provider
	svc     *vector.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "minigis",
		Short:         "矢量数据读取、坐标归一化与格式转换",
		Long:          "MiniGIS 读取 Shapefile、GeoJSON、KML、GeoPackage 等矢量数据，统一转换到 WGS84 经纬度，并可通过 ogr2ogr 导出为其他格式。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "配置文件路径，默认 <用户配置目录>/MiniGIS/config.xml")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newInfoCmd(a),
		newLayersCmd(a),
		newFeaturesCmd(a),
		newTableCmd(a),
		newGeoJSONCmd(a),
		newExportCmd(a),
		newTransformCmd(a),
		newDriversCmd(a),
		newDiagnoseCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{File: a.cfgFile})
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	a.cfg = cfg
	a.log = logger.Build(logger.Config{Level: cfg.LogLevel, Console: cfg.LogConsole, Component: "minigis"}, os.Stderr).
		With().Str("invocation", logger.NewID()).Str("command", cmd.Name()).Logger()

	err = gdal.Init(gdal.Options{
		AppDir:   cfg.AppDir,
		GDALData: cfg.GDALData,
		ProjLib:  cfg.ProjLib,
		Log:      a.log.With().Str("component", "gdal").Logger(),
	})
	if err != nil {
		a.log.Error().Err(err).Msg("GDAL初始化失败")
		return err
	}
	engine := gdal.NewEngine()
	a.metrics = metrics.New(engine.Version())

	opts := []vector.Option{
		vector.WithLogger(a.log),
		vector.WithObserver(a.metrics),
		vector.WithPool(vector.NewPool(cfg.Workers)),
		vector.WithToolLocator(vector.NewToolLocator(cfg.ToolSearchDir(), a.log)),
		vector.WithAppDir(cfg.AppDir),
		vector.WithExportTimeout(cfg.ExportTimeout.Duration),
		vector.WithProjDBChecker(projdb.Checker{Log: a.log}),
	}
	if cfg.CacheSize > 0 {
		c, err := cache.New(cfg.CacheSize)
		if err != nil {
			return err
		}
		opts = append(opts, vector.WithCache(c))
	}
	a.svc = vector.NewService(engine, opts...)
	a.log.Debug().
		Int("workers", cfg.Workers).
		Int("cache_size", cfg.CacheSize).
		Str("gdal", engine.Version()).
		Msg("服务已装配")
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// run 执行操作，失败时把错误分类与信息写到 stderr
func (a *app) run(cmd *cobra.Command, fn func() (interface{}, error)) error {
	v, err := fn()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %v\n", vector.KindOf(err), err)
		return err
	}
	if v == nil {
		return nil
	}
	return printJSON(cmd.OutOrStdout(), v)
}
