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
	"math"
	"strings"

	"github.com/rs/zerolog"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05-07:00"
	timeLayout     = "15:04:05"
)

// AttributeExtractor 将原生字段值转换为 JSON 值
type AttributeExtractor struct {
	fields []FieldDefn
	kml    bool
	log    zerolog.Logger
}

// NewAttributeExtractor fields 为图层字段定义，path 决定是否解析 KML description
func NewAttributeExtractor(fields []FieldDefn, path string, log zerolog.Logger) *AttributeExtractor {
	return &AttributeExtractor{fields: fields, kml: isKML(path), log: log}
}

// Properties 按字段声明顺序提取属性，KML description 解析结果最后写入
func (a *AttributeExtractor) Properties(f NativeFeature) Properties {
	var props Properties
	var description string
	for i, fd := range a.fields {
		v := f.Field(i)
		props.Set(fd.Name, FieldJSON(v))
		if a.kml && v.Kind == FieldString && strings.EqualFold(fd.Name, "description") {
			description = v.Str
		}
	}
	if description != "" {
		pairs := ParseKMLDescription(description)
		for _, p := range pairs {
			props.Set(p.Key, p.Value)
		}
		a.log.Debug().Int("count", len(pairs)).Msg("解析KML description字段")
	}
	return props
}

// FieldJSON 转换单个字段值。NaN 与 ±Inf 转为 null
func FieldJSON(v FieldValue) interface{} {
	switch v.Kind {
	case FieldString:
		return v.Str
	case FieldInteger:
		return v.Int
	case FieldReal:
		if math.IsNaN(v.Real) || math.IsInf(v.Real, 0) {
			return nil
		}
		return v.Real
	case FieldBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case FieldDate:
		return v.Time.Format(dateLayout)
	case FieldDateTime:
		return v.Time.Format(dateTimeLayout)
	case FieldTime:
		return v.Time.Format(timeLayout)
	default:
		return nil
	}
}

// Descriptors 字段描述，别名为空、不可编辑、可见
func Descriptors(fields []FieldDefn) []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldDescriptor{Name: f.Name, FieldType: f.Type, Visible: true})
	}
	return out
}
