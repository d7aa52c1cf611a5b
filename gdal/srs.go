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
	"runtime"
	"strconv"
	"unsafe"
)

// SpatialRef OSR 空间参考，Close 时释放
type SpatialRef struct {
	handle C.OGRSpatialReferenceH
}

func wrapSpatialRef(h C.OGRSpatialReferenceH) *SpatialRef {
	ref := &SpatialRef{handle: h}
	runtime.SetFinalizer(ref, (*SpatialRef).Close)
	return ref
}

// newSpatialRef 使用 OSRSetFromUserInput 解析任意坐标系定义
func newSpatialRef(def string) (*SpatialRef, error) {
	h := C.OSRNewSpatialReference(nil)
	if h == nil {
		return nil, fmt.Errorf("无法创建空间参考")
	}
	cDef := C.CString(def)
	defer C.free(unsafe.Pointer(cDef))

	err := lastError(func() bool {
		return C.OSRSetFromUserInput(h, cDef) == C.OGRERR_NONE
	}, "无法解析坐标系定义")
	if err != nil {
		C.OSRRelease(h)
		return nil, err
	}
	return wrapSpatialRef(h), nil
}

// AuthorityCode 仅识别 EPSG 代码
func (r *SpatialRef) AuthorityCode() (int, bool) {
	if r.handle == nil {
		return 0, false
	}
	name := C.OSRGetAuthorityName(r.handle, nil)
	code := C.OSRGetAuthorityCode(r.handle, nil)
	if name == nil || code == nil || C.GoString(name) != "EPSG" {
		return 0, false
	}
	n, err := strconv.Atoi(C.GoString(code))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r *SpatialRef) WKT() (string, error) {
	if r.handle == nil {
		return "", fmt.Errorf("空间参考已释放")
	}
	var wkt *C.char
	if C.OSRExportToWkt(r.handle, &wkt) != C.OGRERR_NONE {
		if wkt != nil {
			C.CPLFree(unsafe.Pointer(wkt))
		}
		return "", fmt.Errorf("导出WKT失败")
	}
	defer C.CPLFree(unsafe.Pointer(wkt))
	return C.GoString(wkt), nil
}

func (r *SpatialRef) UseTraditionalAxisOrder() {
	if r.handle != nil {
		C.useTraditionalAxisOrder(r.handle)
	}
}

func (r *SpatialRef) Close() {
	if r.handle != nil {
		C.OSRRelease(r.handle)
		r.handle = nil
	}
	runtime.SetFinalizer(r, nil)
}

// Transform OGR 坐标转换
type Transform struct {
	handle C.OGRCoordinateTransformationH
}

// TransformPoints 就地转换，任一点失败即返回错误
func (t *Transform) TransformPoints(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("坐标数组长度不一致: %d != %d", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil
	}
	if t.handle == nil {
		return fmt.Errorf("坐标转换已释放")
	}
	return lastError(func() bool {
		return C.OCTTransform(t.handle, C.int(len(xs)),
			(*C.double)(unsafe.Pointer(&xs[0])),
			(*C.double)(unsafe.Pointer(&ys[0])),
			nil) != 0
	}, "坐标转换失败")
}

func (t *Transform) Close() {
	if t.handle != nil {
		C.OCTDestroyCoordinateTransformation(t.handle)
		t.handle = nil
	}
	runtime.SetFinalizer(t, nil)
}
