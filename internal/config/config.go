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
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/xiaofuX1/MiniGIS/vector"
)

const (
	AppName   = "MiniGIS"
	FileName  = "config.xml"
	EnvPrefix = "MINIGIS_"
)

// Duration 在 XML 与环境变量中写作 30s、5m 等
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	XMLName        xml.Name `xml:"config"`
	Addr           string   `xml:"addr"`
	LogLevel       string   `xml:"log_level"`
	LogConsole     bool     `xml:"log_console"`
	AppDir         string   `xml:"app_dir"`
	GDALData       string   `xml:"gdal_data"`
	ProjLib        string   `xml:"proj_lib"`
	ToolDir        string   `xml:"tool_dir"`
	CacheSize      int      `xml:"cache_size"`
	Workers        int      `xml:"workers"`
	ExportTimeout  Duration `xml:"export_timeout"`
	MetricsEnabled bool     `xml:"metrics_enabled"`
}

func Default() Config {
	cfg := Config{
		Addr:           "127.0.0.1:8080",
		LogLevel:       "info",
		Workers:        vector.DefaultPoolSize(),
		MetricsEnabled: true,
	}
	if exe, err := os.Executable(); err == nil {
		cfg.AppDir = filepath.Dir(exe)
	}
	return cfg
}

// DefaultPath 用户配置目录下的 MiniGIS/config.xml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("无法获取用户配置目录: %w", err)
	}
	return filepath.Join(dir, AppName, FileName), nil
}

// Options 控制 Load 的来源，零值读取默认位置与进程环境变量
type Options struct {
	File   string
	Lookup func(key string) (string, bool)
}

// Load 依次应用默认值、配置文件和环境变量，后者覆盖前者。
// 配置文件不存在不算错误
func Load(opts Options) (Config, error) {
	cfg := Default()

	path := opts.File
	if path == "" {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	xmlFile, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("无法打开配置文件 %s: %w", path, err)
	}
	defer xmlFile.Close()

	if err := xml.NewDecoder(xmlFile).Decode(c); err != nil {
		return fmt.Errorf("配置文件解析失败 %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("ADDR", &c.Addr)
	str("LOG_LEVEL", &c.LogLevel)
	boolean("LOG_CONSOLE", &c.LogConsole)
	str("APP_DIR", &c.AppDir)
	str("GDAL_DATA", &c.GDALData)
	str("PROJ_LIB", &c.ProjLib)
	str("TOOL_DIR", &c.ToolDir)
	integer("CACHE_SIZE", &c.CacheSize)
	integer("WORKERS", &c.Workers)
	boolean("METRICS_ENABLED", &c.MetricsEnabled)
	if v, ok := lookup(EnvPrefix + "EXPORT_TIMEOUT"); ok {
		if err := c.ExportTimeout.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("%sEXPORT_TIMEOUT: %w", EnvPrefix, err))
		}
	}
	return errors.Join(errs...)
}

// RegisterFlags 注册命令行参数，仅显式设置的参数会覆盖其他来源
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("addr", d.Addr, "HTTP 监听地址")
	flags.String("log-level", d.LogLevel, "日志级别 debug|info|warn|error")
	flags.Bool("log-console", d.LogConsole, "输出便于阅读的控制台日志")
	flags.String("app-dir", d.AppDir, "应用程序目录，包含 proj-data、gdal-data 与 gdal-tools")
	flags.String("gdal-data", "", "GDAL 数据目录，默认 <app-dir>/gdal-data")
	flags.String("proj-lib", "", "PROJ 数据目录，默认 <app-dir>/proj-data")
	flags.String("tool-dir", "", "ogr2ogr 所在目录，默认 <app-dir>")
	flags.Int("cache-size", d.CacheSize, "摘要缓存容量，0 表示不缓存")
	flags.Int("workers", d.Workers, "同时持有原生句柄的请求数")
	flags.Duration("export-timeout", d.ExportTimeout.Duration, "导出超时，0 表示不限时")
	flags.Bool("metrics", d.MetricsEnabled, "暴露 /metrics")
}

// ApplyFlags 将显式设置的命令行参数写入配置
func (c *Config) ApplyFlags(flags *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err != nil || !flags.Changed(name) {
			return
		}
		err = apply()
	}
	set("addr", func() (e error) { c.Addr, e = flags.GetString("addr"); return })
	set("log-level", func() (e error) { c.LogLevel, e = flags.GetString("log-level"); return })
	set("log-console", func() (e error) { c.LogConsole, e = flags.GetBool("log-console"); return })
	set("app-dir", func() (e error) { c.AppDir, e = flags.GetString("app-dir"); return })
	set("gdal-data", func() (e error) { c.GDALData, e = flags.GetString("gdal-data"); return })
	set("proj-lib", func() (e error) { c.ProjLib, e = flags.GetString("proj-lib"); return })
	set("tool-dir", func() (e error) { c.ToolDir, e = flags.GetString("tool-dir"); return })
	set("cache-size", func() (e error) { c.CacheSize, e = flags.GetInt("cache-size"); return })
	set("workers", func() (e error) { c.Workers, e = flags.GetInt("workers"); return })
	set("export-timeout", func() (e error) { c.ExportTimeout.Duration, e = flags.GetDuration("export-timeout"); return })
	set("metrics", func() (e error) { c.MetricsEnabled, e = flags.GetBool("metrics"); return })
	if err != nil {
		return err
	}
	return c.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.CacheSize < 0:
		return fmt.Errorf("cache_size 不能为负数: %d", c.CacheSize)
	case c.Workers < 0:
		return fmt.Errorf("workers 不能为负数: %d", c.Workers)
	case c.ExportTimeout.Duration < 0:
		return fmt.Errorf("export_timeout 不能为负数: %s", c.ExportTimeout.Duration)
	}
	return nil
}

// ToolSearchDir ogr2ogr 的查找起点
func (c Config) ToolSearchDir() string {
	if c.ToolDir != "" {
		return c.ToolDir
	}
	return c.AppDir
}
