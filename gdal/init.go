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
package gdal

/*
#include "gdal_bridge.h"
*/
import "C"
import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/rs/zerolog"
)

const (
	ProjDataDir = "proj-data"
	GDALDataDir = "gdal-data"
)

// Options 运行时初始化参数。目录为空时从 AppDir 下的默认子目录推断
type Options struct {
	AppDir   string
	GDALData string
	ProjLib  string
	Log      zerolog.Logger
}

// Init 设置数据目录和全局配置项并注册全部驱动，进程启动时调用一次。
// 数据目录缺失只记录警告，没有任何驱动时返回错误
func Init(opts Options) error {
	log := opts.Log
	appDir := opts.AppDir
	if appDir == "" {
		if exe, err := os.Executable(); err == nil {
			appDir = filepath.Dir(exe)
		}
	}
	if appDir == "" {
		log.Error().Msg("无法获取应用程序目录")
	} else {
		log.Info().Str("dir", appDir).Msg("应用程序目录")
		if runtime.GOOS == "windows" {
			// 确保同目录下的 DLL 能被找到
			os.Setenv("PATH", appDir+string(os.PathListSeparator)+os.Getenv("PATH"))
		}
	}

	projDir := pick(opts.ProjLib, appDir, ProjDataDir)
	if isDir(projDir) {
		os.Setenv("PROJ_LIB", projDir)
		os.Setenv("PROJ_DATA", projDir)
		setProjSearchPath(projDir)
		log.Info().Str("proj_lib", projDir).Msg("PROJ数据目录已设置")
	} else {
		log.Warn().Str("proj_lib", projDir).Msg("PROJ数据目录不存在")
	}

	gdalDir := pick(opts.GDALData, appDir, GDALDataDir)
	if isDir(gdalDir) {
		os.Setenv("GDAL_DATA", gdalDir)
		setConfigOption("GDAL_DATA", gdalDir)
		log.Info().Str("gdal_data", gdalDir).Msg("GDAL数据目录已设置")
	} else {
		log.Warn().Str("gdal_data", gdalDir).Msg("GDAL数据目录不存在")
	}

	setConfigOption("GDAL_FILENAME_IS_UTF8", "YES")
	// 编码由打开选项逐个数据集指定
	setConfigOption("SHAPE_ENCODING", "")

	C.GDALAllRegister()

	count := DriverCount()
	if count == 0 {
		return fmt.Errorf("GDAL驱动未加载")
	}
	log.Info().Int("driver_count", count).Str("version", Engine{}.Version()).Msg("GDAL环境初始化完成")
	return nil
}

func pick(explicit, appDir, sub string) string {
	if explicit != "" {
		return explicit
	}
	if appDir == "" {
		return ""
	}
	return filepath.Join(appDir, sub)
}

func isDir(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

func setConfigOption(key, value string) {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))
	C.CPLSetConfigOption(cKey, cValue)
}

func setProjSearchPath(dir string) {
	cDir := C.CString(dir)
	defer C.free(unsafe.Pointer(cDir))
	var paths **C.char
	paths = C.CSLAddString(paths, cDir)
	defer C.CSLDestroy(paths)
	C.OSRSetPROJSearchPaths(paths)
}
