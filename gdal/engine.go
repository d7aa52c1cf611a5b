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

// Package gdal 通过 cgo 绑定 GDAL/OGR/OSR，实现 vector.Engine。
// 除 Init 外不修改任何进程级配置；每个打开的数据集只属于一个调用方。
package gdal

/*
#cgo pkg-config: gdal
#include "gdal_bridge.h"
*/
import "C"
import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/xiaofuX1/MiniGIS/vector"
)

// Engine GDAL 实现
type Engine struct{}

var _ vector.Engine = Engine{}

// NewEngine 调用方需先执行 Init
func NewEngine() Engine { return Engine{} }

// Open 以只读矢量模式打开数据集，options 作为打开选项传入（如 ENCODING=GBK）
func (Engine) Open(path string, options ...string) (vector.Dataset, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var cOptions **C.char
	for _, opt := range options {
		cOpt := C.CString(opt)
		cOptions = C.CSLAddString(cOptions, cOpt)
		C.free(unsafe.Pointer(cOpt))
	}
	defer C.CSLDestroy(cOptions)

	var h C.GDALDatasetH
	err := lastError(func() bool {
		h = C.openVectorEx(cPath, cOptions)
		return h != nil
	}, "无法打开数据集 %s", path)
	if err != nil {
		return nil, err
	}
	ds := &dataset{handle: h}
	runtime.SetFinalizer(ds, (*dataset).cleanup)
	return ds, nil
}

// SpatialRefFromWKT 由 WKT 构造坐标系
func (e Engine) SpatialRefFromWKT(wkt string) (vector.SpatialRef, error) {
	return e.SpatialRefFromDefinition(wkt)
}

// SpatialRefFromDefinition 接受 EPSG:xxxx、WKT、PROJ 字符串等任意用户输入
func (Engine) SpatialRefFromDefinition(def string) (vector.SpatialRef, error) {
	ref, err := newSpatialRef(def)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func (Engine) NewTransform(src, dst vector.SpatialRef) (vector.Transform, error) {
	s, ok := src.(*SpatialRef)
	if !ok {
		return nil, fmt.Errorf("源坐标系不是 GDAL 坐标系")
	}
	d, ok := dst.(*SpatialRef)
	if !ok {
		return nil, fmt.Errorf("目标坐标系不是 GDAL 坐标系")
	}
	var h C.OGRCoordinateTransformationH
	err := lastError(func() bool {
		h = C.OCTNewCoordinateTransformation(s.handle, d.handle)
		return h != nil
	}, "创建坐标转换失败")
	if err != nil {
		return nil, err
	}
	t := &Transform{handle: h}
	runtime.SetFinalizer(t, (*Transform).Close)
	return t, nil
}

// Drivers 已注册驱动的长名称
func (Engine) Drivers() []string {
	count := int(C.GDALGetDriverCount())
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		drv := C.GDALGetDriver(C.int(i))
		if drv == nil {
			continue
		}
		out = append(out, C.GoString(C.GDALGetDriverLongName(drv)))
	}
	return out
}

// Version GDAL 发布版本号，例如 3.8.4
func (Engine) Version() string {
	key := C.CString("RELEASE_NAME")
	defer C.free(unsafe.Pointer(key))
	return C.GoString(C.GDALVersionInfo(key))
}

// DriverCount 已注册驱动数量
func DriverCount() int {
	return int(C.GDALGetDriverCount())
}
