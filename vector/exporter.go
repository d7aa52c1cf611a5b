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
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// ToolName 外部转换工具
const ToolName = "ogr2ogr"

// ToolSubdir 应用目录下存放 GDAL 工具的子目录
const ToolSubdir = "gdal-tools"

var exportDrivers = map[string]string{
	"KML":       "KML",
	"KMZ":       "LIBKML",
	"GEOJSON":   "GeoJSON",
	"SHAPEFILE": "ESRI Shapefile",
	"SHP":       "ESRI Shapefile",
	"GPKG":      "GPKG",
}

// DriverForFormat 将格式名映射为驱动名，不区分大小写
func DriverForFormat(format string) (string, bool) {
	d, ok := exportDrivers[strings.ToUpper(strings.TrimSpace(format))]
	return d, ok
}

// ExportRequest 导出请求。LayerIndex 为 nil 时导出全部图层
type ExportRequest struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Format     string `json:"format"`
	LayerIndex *int   `json:"layer_index,omitempty"`
}

// RunResult 外部进程的退出状态
type RunResult struct {
	ExitCode int
	Stderr   string
}

// Runner 执行外部命令
type Runner interface {
	Run(ctx context.Context, tool string, args []string) (RunResult, error)
}

// ExecRunner 使用 os/exec 执行命令
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, tool string, args []string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := RunResult{Stderr: decodeToolOutput(stderr.Bytes())}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// decodeToolOutput 工具在中文 Windows 上按 GBK 输出
func decodeToolOutput(b []byte) string {
	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}
	if decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(b); err == nil {
		return strings.TrimSpace(string(decoded))
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "?"))
}

// ToolLocator 查找外部转换工具：应用目录、gdal-tools 子目录、PATH
type ToolLocator struct {
	AppDir  string
	PathEnv string
	GOOS    string
	log     zerolog.Logger
}

// NewToolLocator appDir 为空时使用可执行文件所在目录
func NewToolLocator(appDir string, log zerolog.Logger) *ToolLocator {
	if appDir == "" {
		if exe, err := os.Executable(); err == nil {
			appDir = filepath.Dir(exe)
		}
	}
	return &ToolLocator{AppDir: appDir, PathEnv: os.Getenv("PATH"), GOOS: runtime.GOOS, log: log}
}

func (l *ToolLocator) executable() string {
	if l.GOOS == "windows" {
		return ToolName + ".exe"
	}
	return ToolName
}

// Locate 返回第一个找到的工具路径
func (l *ToolLocator) Locate() (string, bool) {
	name := l.executable()
	l.log.Info().Msg("开始查找ogr2ogr可执行文件")

	var candidates []string
	if l.AppDir != "" {
		candidates = append(candidates,
			filepath.Join(l.AppDir, name),
			filepath.Join(l.AppDir, ToolSubdir, name),
		)
	}
	for _, dir := range filepath.SplitList(l.PathEnv) {
		if dir == "" {
			continue
		}
		candidates = append(candidates, filepath.Join(dir, name))
	}

	for _, c := range candidates {
		l.log.Debug().Str("candidate", c).Msg("检查")
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			l.log.Info().Str("tool", c).Msg("找到ogr2ogr")
			return c, true
		}
	}
	l.log.Error().Msg("未找到ogr2ogr可执行文件")
	return "", false
}

// VectorExporter 调用外部工具导出矢量数据
type VectorExporter struct {
	opener   *DatasetOpener
	locator  *ToolLocator
	runner   Runner
	pool     *Pool
	observer Observer
	timeout  time.Duration
	log      zerolog.Logger
}

func NewVectorExporter(opener *DatasetOpener, locator *ToolLocator, runner Runner, pool *Pool, observer Observer, timeout time.Duration, log zerolog.Logger) *VectorExporter {
	if runner == nil {
		runner = ExecRunner{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &VectorExporter{opener: opener, locator: locator, runner: runner, pool: pool, observer: observer, timeout: timeout, log: log}
}

// Export 导出到 OutputPath。不支持的格式在启动任何进程前返回 KindInvalidFormat
func (e *VectorExporter) Export(ctx context.Context, req ExportRequest) (err error) {
	driver, ok := DriverForFormat(req.Format)
	if !ok {
		return formatError(nil, "不支持的导出格式: %s", req.Format)
	}

	start := time.Now()
	defer func() {
		e.observer.ExportFinished(driver, err == nil, time.Since(start).Seconds())
	}()

	ev := e.log.Info().Str("input", req.InputPath).Str("output", req.OutputPath).Str("format", req.Format)
	if req.LayerIndex != nil {
		ev = ev.Int("layer_index", *req.LayerIndex)
	}
	ev.Msg("开始导出")

	tool, found := e.locator.Locate()
	if !found {
		return writeError(nil, "未找到ogr2ogr工具。请将ogr2ogr放在应用程序目录或其%s子目录中，或将GDAL安装目录加入PATH环境变量", ToolSubdir)
	}

	if _, statErr := os.Stat(req.OutputPath); statErr == nil {
		e.log.Info().Str("output", req.OutputPath).Msg("删除已存在的输出文件")
		if rmErr := os.Remove(req.OutputPath); rmErr != nil {
			e.log.Warn().Err(rmErr).Msg("删除输出文件失败，交由ogr2ogr覆盖")
		}
	}

	args := []string{"-f", driver, req.OutputPath, req.InputPath}
	if req.LayerIndex != nil {
		name, err := e.layerName(ctx, req.InputPath, *req.LayerIndex)
		if err != nil {
			return err
		}
		e.log.Info().Int("layer_index", *req.LayerIndex).Str("layer", name).Msg("图层索引对应的图层名称")
		args = append(args, name)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, runErr := e.runner.Run(ctx, tool, args)
	if runErr != nil {
		e.log.Error().Err(runErr).Msg("无法执行ogr2ogr命令")
		return writeError(runErr, "无法执行ogr2ogr命令")
	}
	if res.ExitCode != 0 {
		e.log.Error().Int("exit_code", res.ExitCode).Str("stderr", res.Stderr).Msg("ogr2ogr导出失败")
		return writeError(nil, "ogr2ogr导出失败: %s", res.Stderr)
	}
	e.log.Info().Str("output", req.OutputPath).Msg("导出成功")
	return nil
}

// layerName 打开输入数据集，仅用于把图层索引解析为图层名
func (e *VectorExporter) layerName(ctx context.Context, path string, index int) (string, error) {
	var name string
	err := e.pool.Do(ctx, func() error {
		ds, err := e.opener.Open(path)
		if err != nil {
			return err
		}
		defer ds.Close()
		layer, err := ds.Layer(index)
		if err != nil {
			return readError(err, "无法读取图层 %d", index)
		}
		name = layer.Name()
		return nil
	})
	return name, err
}
