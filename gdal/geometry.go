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
	"errors"
	"fmt"
	"runtime"

	"github.com/paulmach/orb"

	"github.com/xiaofuX1/MiniGIS/vector"
)

// Geometry OGR 几何。owned 为 false 时句柄属于要素，不可修改也不释放
type Geometry struct {
	handle C.OGRGeometryH
	owned  bool
}

// Clone 深拷贝，返回值由调用方 Close
func (g *Geometry) Clone() vector.NativeGeometry {
	if g.handle == nil {
		return nil
	}
	h := C.OGR_G_Clone(g.handle)
	if h == nil {
		return nil
	}
	clone := &Geometry{handle: h, owned: true}
	runtime.SetFinalizer(clone, (*Geometry).Close)
	return clone
}

func (g *Geometry) Transform(t vector.Transform) error {
	if !g.owned {
		return errors.New("不能修改要素持有的几何，请先克隆")
	}
	ct, ok := t.(*Transform)
	if !ok || ct.handle == nil {
		return errors.New("坐标转换无效")
	}
	return lastError(func() bool {
		return C.OGR_G_Transform(g.handle, ct.handle) == C.OGRERR_NONE
	}, "几何坐标转换失败")
}

// Type GeoJSON 类型名，Z/M 维度被忽略
func (g *Geometry) Type() string {
	return geoJSONType(C.OGR_GT_Flatten(C.OGR_G_GetGeometryType(g.handle)))
}

func (g *Geometry) Orb() (orb.Geometry, error) {
	return convertGeometry(g.handle)
}

// Zs 坐标维度为 3 时按 Orb 的坐标顺序返回 Z 值
func (g *Geometry) Zs() []float64 {
	if g.handle == nil || C.OGR_G_CoordinateDimension(g.handle) != 3 {
		return nil
	}
	var zs []float64
	collectZ(g.handle, &zs)
	return zs
}

func (g *Geometry) Close() {
	if g.owned && g.handle != nil {
		C.OGR_G_DestroyGeometry(g.handle)
		g.handle = nil
	}
	runtime.SetFinalizer(g, nil)
}

func geoJSONType(t C.OGRwkbGeometryType) string {
	switch t {
	case C.wkbPoint:
		return "Point"
	case C.wkbLineString:
		return "LineString"
	case C.wkbPolygon:
		return "Polygon"
	case C.wkbMultiPoint:
		return "MultiPoint"
	case C.wkbMultiLineString:
		return "MultiLineString"
	case C.wkbMultiPolygon:
		return "MultiPolygon"
	case C.wkbGeometryCollection:
		return "GeometryCollection"
	case C.wkbCircularString, C.wkbCompoundCurve:
		return "LineString"
	case C.wkbCurvePolygon:
		return "Polygon"
	case C.wkbMultiCurve:
		return "MultiLineString"
	case C.wkbMultiSurface:
		return "MultiPolygon"
	}
	return C.GoString(C.OGRGeometryTypeToName(t))
}

// convertGeometry 转换GDAL几何对象为orb几何对象，曲线几何先线性化
func convertGeometry(hGeometry C.OGRGeometryH) (orb.Geometry, error) {
	if hGeometry == nil {
		return nil, nil
	}
	geometryType := C.OGR_GT_Flatten(C.OGR_G_GetGeometryType(hGeometry))
	if C.OGR_GT_IsNonLinear(geometryType) != 0 {
		linear := C.OGR_G_GetLinearGeometry(hGeometry, 0, nil)
		if linear == nil {
			return nil, fmt.Errorf("曲线几何线性化失败")
		}
		defer C.OGR_G_DestroyGeometry(linear)
		return convertGeometry(linear)
	}

	switch geometryType {
	case C.wkbPoint:
		if C.OGR_G_IsEmpty(hGeometry) != 0 {
			return nil, nil
		}
		return convertPoint(hGeometry), nil
	case C.wkbLineString:
		return convertLineString(hGeometry), nil
	case C.wkbPolygon:
		return convertPolygon(hGeometry), nil
	case C.wkbMultiPoint:
		return convertMultiPoint(hGeometry), nil
	case C.wkbMultiLineString:
		return convertMultiLineString(hGeometry), nil
	case C.wkbMultiPolygon:
		return convertMultiPolygon(hGeometry), nil
	case C.wkbGeometryCollection:
		return convertCollection(hGeometry)
	default:
		return nil, fmt.Errorf("不支持的几何类型: %d", int(geometryType))
	}
}

// convertPoint 转换点几何
func convertPoint(hGeometry C.OGRGeometryH) orb.Point {
	x := float64(C.OGR_G_GetX(hGeometry, 0))
	y := float64(C.OGR_G_GetY(hGeometry, 0))
	return orb.Point{x, y}
}

func convertPoints(hGeometry C.OGRGeometryH) []orb.Point {
	pointCount := int(C.OGR_G_GetPointCount(hGeometry))
	points := make([]orb.Point, pointCount)
	for i := 0; i < pointCount; i++ {
		x := float64(C.OGR_G_GetX(hGeometry, C.int(i)))
		y := float64(C.OGR_G_GetY(hGeometry, C.int(i)))
		points[i] = orb.Point{x, y}
	}
	return points
}

// convertLineString 转换线几何
func convertLineString(hGeometry C.OGRGeometryH) orb.LineString {
	return orb.LineString(convertPoints(hGeometry))
}

// convertPolygon 转换面几何
func convertPolygon(hGeometry C.OGRGeometryH) orb.Polygon {
	ringCount := int(C.OGR_G_GetGeometryCount(hGeometry))
	polygon := make(orb.Polygon, ringCount)
	for i := 0; i < ringCount; i++ {
		hRing := C.OGR_G_GetGeometryRef(hGeometry, C.int(i))
		polygon[i] = orb.Ring(convertPoints(hRing))
	}
	return polygon
}

// convertMultiPoint 转换多点几何
func convertMultiPoint(hGeometry C.OGRGeometryH) orb.MultiPoint {
	geomCount := int(C.OGR_G_GetGeometryCount(hGeometry))
	multiPoint := make(orb.MultiPoint, 0, geomCount)
	for i := 0; i < geomCount; i++ {
		hPoint := C.OGR_G_GetGeometryRef(hGeometry, C.int(i))
		if C.OGR_G_IsEmpty(hPoint) != 0 {
			continue
		}
		multiPoint = append(multiPoint, convertPoint(hPoint))
	}
	return multiPoint
}

// convertMultiLineString 转换多线几何
func convertMultiLineString(hGeometry C.OGRGeometryH) orb.MultiLineString {
	geomCount := int(C.OGR_G_GetGeometryCount(hGeometry))
	multiLineString := make(orb.MultiLineString, geomCount)
	for i := 0; i < geomCount; i++ {
		multiLineString[i] = convertLineString(C.OGR_G_GetGeometryRef(hGeometry, C.int(i)))
	}
	return multiLineString
}

// convertMultiPolygon 转换多面几何
func convertMultiPolygon(hGeometry C.OGRGeometryH) orb.MultiPolygon {
	geomCount := int(C.OGR_G_GetGeometryCount(hGeometry))
	multiPolygon := make(orb.MultiPolygon, geomCount)
	for i := 0; i < geomCount; i++ {
		multiPolygon[i] = convertPolygon(C.OGR_G_GetGeometryRef(hGeometry, C.int(i)))
	}
	return multiPolygon
}

func convertCollection(hGeometry C.OGRGeometryH) (orb.Collection, error) {
	geomCount := int(C.OGR_G_GetGeometryCount(hGeometry))
	collection := make(orb.Collection, 0, geomCount)
	for i := 0; i < geomCount; i++ {
		member, err := convertGeometry(C.OGR_G_GetGeometryRef(hGeometry, C.int(i)))
		if err != nil {
			return nil, err
		}
		if member != nil {
			collection = append(collection, member)
		}
	}
	return collection, nil
}

// collectZ 与 convertGeometry 相同的遍历顺序，空点不计入
func collectZ(hGeometry C.OGRGeometryH, zs *[]float64) {
	if hGeometry == nil {
		return
	}
	geometryType := C.OGR_GT_Flatten(C.OGR_G_GetGeometryType(hGeometry))
	if C.OGR_GT_IsNonLinear(geometryType) != 0 {
		linear := C.OGR_G_GetLinearGeometry(hGeometry, 0, nil)
		if linear == nil {
			return
		}
		defer C.OGR_G_DestroyGeometry(linear)
		collectZ(linear, zs)
		return
	}

	switch geometryType {
	case C.wkbPoint:
		if C.OGR_G_IsEmpty(hGeometry) == 0 {
			*zs = append(*zs, float64(C.OGR_G_GetZ(hGeometry, 0)))
		}
	case C.wkbLineString:
		appendLineZ(hGeometry, zs)
	case C.wkbPolygon:
		ringCount := int(C.OGR_G_GetGeometryCount(hGeometry))
		for i := 0; i < ringCount; i++ {
			appendLineZ(C.OGR_G_GetGeometryRef(hGeometry, C.int(i)), zs)
		}
	default:
		geomCount := int(C.OGR_G_GetGeometryCount(hGeometry))
		for i := 0; i < geomCount; i++ {
			collectZ(C.OGR_G_GetGeometryRef(hGeometry, C.int(i)), zs)
		}
	}
}

func appendLineZ(hGeometry C.OGRGeometryH, zs *[]float64) {
	pointCount := int(C.OGR_G_GetPointCount(hGeometry))
	for i := 0; i < pointCount; i++ {
		*zs = append(*zs, float64(C.OGR_G_GetZ(hGeometry, C.int(i))))
	}
}
