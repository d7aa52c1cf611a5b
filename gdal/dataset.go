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
	"time"

	"github.com/xiaofuX1/MiniGIS/vector"
)

type dataset struct {
	handle C.GDALDatasetH
}

// cleanup 清理资源
func (d *dataset) cleanup() {
	if d.handle != nil {
		C.GDALClose(d.handle)
		d.handle = nil
	}
}

// Close 手动关闭资源
func (d *dataset) Close() {
	d.cleanup()
	runtime.SetFinalizer(d, nil)
}

func (d *dataset) LayerCount() int {
	if d.handle == nil {
		return 0
	}
	return int(C.GDALDatasetGetLayerCount(d.handle))
}

func (d *dataset) Layer(index int) (vector.Layer, error) {
	if d.handle == nil {
		return nil, fmt.Errorf("数据集已关闭")
	}
	if index < 0 || index >= d.LayerCount() {
		return nil, fmt.Errorf("图层索引越界: %d", index)
	}
	var h C.OGRLayerH
	err := lastError(func() bool {
		h = C.GDALDatasetGetLayer(d.handle, C.int(index))
		return h != nil
	}, "无法获取图层 %d", index)
	if err != nil {
		return nil, err
	}
	return &layer{handle: h, defn: C.OGR_L_GetLayerDefn(h)}, nil
}

// layer 句柄归数据集所有，不单独释放
type layer struct {
	handle C.OGRLayerH
	defn   C.OGRFeatureDefnH
}

// Name 获取图层名称
func (l *layer) Name() string {
	name := C.OGR_L_GetName(l.handle)
	if name == nil {
		return ""
	}
	return C.GoString(name)
}

// FeatureCount 1 表示强制计算
func (l *layer) FeatureCount() int {
	return int(C.OGR_L_GetFeatureCount(l.handle, C.int(1)))
}

func (l *layer) Fields() []vector.FieldDefn {
	count := int(C.OGR_FD_GetFieldCount(l.defn))
	out := make([]vector.FieldDefn, 0, count)
	for i := 0; i < count; i++ {
		fd := C.OGR_FD_GetFieldDefn(l.defn, C.int(i))
		if fd == nil {
			continue
		}
		out = append(out, vector.FieldDefn{
			Name: C.GoString(C.OGR_Fld_GetNameRef(fd)),
			Type: C.GoString(C.OGR_GetFieldTypeName(C.OGR_Fld_GetType(fd))),
		})
	}
	return out
}

// SpatialRef 返回坐标系副本，调用方负责 Close
func (l *layer) SpatialRef() (vector.SpatialRef, bool) {
	h := C.OGR_L_GetSpatialRef(l.handle)
	if h == nil {
		return nil, false
	}
	clone := C.OSRClone(h)
	if clone == nil {
		return nil, false
	}
	return wrapSpatialRef(clone), true
}

func (l *layer) Extent() (vector.Extent, error) {
	var env C.OGREnvelope
	if C.OGR_L_GetExtent(l.handle, &env, C.int(1)) != C.OGRERR_NONE {
		return vector.Extent{}, fmt.Errorf("无法计算图层 %s 的范围", l.Name())
	}
	return vector.Extent{
		MinX: float64(env.MinX),
		MinY: float64(env.MinY),
		MaxX: float64(env.MaxX),
		MaxY: float64(env.MaxY),
	}, nil
}

// ResetReading 重置读取位置
func (l *layer) ResetReading() {
	C.OGR_L_ResetReading(l.handle)
}

func (l *layer) NextFeature() vector.NativeFeature {
	h := C.OGR_L_GetNextFeature(l.handle)
	if h == nil {
		return nil
	}
	return &feature{handle: h, defn: l.defn}
}

type feature struct {
	handle C.OGRFeatureH
	defn   C.OGRFeatureDefnH
}

func (f *feature) FID() int64 {
	fid := int64(C.OGR_F_GetFID(f.handle))
	if fid < 0 {
		return -1
	}
	return fid
}

// Geometry 返回要素持有的几何引用，随要素一起释放
func (f *feature) Geometry() vector.NativeGeometry {
	h := C.OGR_F_GetGeometryRef(f.handle)
	if h == nil {
		return nil
	}
	return &Geometry{handle: h}
}

func (f *feature) Close() {
	if f.handle != nil {
		C.OGR_F_Destroy(f.handle)
		f.handle = nil
	}
}

// Field 按字段类型读取值，未设置或为 NULL 时返回 FieldNull
func (f *feature) Field(index int) vector.FieldValue {
	idx := C.int(index)
	if C.OGR_F_IsFieldSetAndNotNull(f.handle, idx) == 0 {
		return vector.FieldValue{}
	}
	fd := C.OGR_FD_GetFieldDefn(f.defn, idx)
	if fd == nil {
		return vector.FieldValue{}
	}

	switch C.OGR_Fld_GetType(fd) {
	case C.OFTString:
		return vector.StringValue(C.GoString(C.OGR_F_GetFieldAsString(f.handle, idx)))
	case C.OFTInteger:
		v := int64(C.OGR_F_GetFieldAsInteger(f.handle, idx))
		if C.isBooleanField(fd) != 0 {
			return vector.BooleanValue(v != 0)
		}
		return vector.IntegerValue(v)
	case C.OFTInteger64:
		return vector.IntegerValue(int64(C.OGR_F_GetFieldAsInteger64(f.handle, idx)))
	case C.OFTReal:
		return vector.RealValue(float64(C.OGR_F_GetFieldAsDouble(f.handle, idx)))
	case C.OFTDate:
		if t, ok := f.dateTime(idx); ok {
			return vector.DateValue(t)
		}
	case C.OFTDateTime:
		if t, ok := f.dateTime(idx); ok {
			return vector.DateTimeValue(t)
		}
	case C.OFTTime:
		if t, ok := f.dateTime(idx); ok {
			return vector.TimeValue(t)
		}
	}
	return vector.FieldValue{Kind: vector.FieldUnsupported}
}

func (f *feature) dateTime(idx C.int) (time.Time, bool) {
	var year, month, day, hour, minute, tzflag C.int
	var second C.float
	if C.OGR_F_GetFieldAsDateTimeEx(f.handle, idx, &year, &month, &day, &hour, &minute, &second, &tzflag) == 0 {
		return time.Time{}, false
	}
	whole := int(second)
	nanos := int((float64(second) - float64(whole)) * 1e9)
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), whole, nanos, zone(int(tzflag))), true
}

// zone 将 OGR 时区标志转换为时区：100 为 UTC，偏移量每单位 15 分钟。
// 未知(0)或本地时区(1)按 UTC 处理
func zone(tzflag int) *time.Location {
	if tzflag <= 1 || tzflag == 100 {
		return time.UTC
	}
	offset := (tzflag - 100) * 15 * 60
	return time.FixedZone("", offset)
}
