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
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/htmlindex"
)

// 编码候选名。空字符串表示交给底层库使用系统默认编码
const (
	EncodingUTF8    = "UTF-8"
	EncodingGBK     = "GBK"
	EncodingLatin1  = "ISO-8859-1"
	EncodingDefault = ""
)

var (
	utf8Order   = []string{EncodingUTF8, EncodingGBK, EncodingDefault}
	gbkOrder    = []string{EncodingGBK, EncodingUTF8, EncodingDefault}
	latin1Order = []string{EncodingLatin1, EncodingGBK, EncodingUTF8, EncodingDefault}
	kmlOrder    = []string{EncodingUTF8, EncodingDefault}
)

// EncodingResolver 决定打开文件时依次尝试的编码
type EncodingResolver struct {
	log zerolog.Logger
}

func NewEncodingResolver(log zerolog.Logger) *EncodingResolver {
	return &EncodingResolver{log: log}
}

// Resolve 返回按优先级排列的候选编码，结果非空
func (r *EncodingResolver) Resolve(path string) []string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".kml" || ext == ".kmz" {
		r.log.Info().Str("path", path).Msg("KML/KMZ文件，使用UTF-8编码")
		return clone(kmlOrder)
	}

	cpgPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".cpg"
	if content, err := os.ReadFile(cpgPath); err == nil {
		declared := strings.ToUpper(strings.TrimSpace(string(content)))
		r.log.Info().Str("cpg", cpgPath).Str("declared", declared).Msg("检测到 .cpg 文件")
		if order := orderForDeclared(declared); order != nil {
			return clone(order)
		}
		r.log.Info().Str("declared", declared).Msg("无法识别的 .cpg 编码声明，按无 .cpg 处理")
		return clone(gbkOrder)
	}

	r.log.Info().Str("path", path).Msg("未找到 .cpg 文件，自动尝试编码: GBK -> UTF-8 -> 系统默认")
	return clone(gbkOrder)
}

// orderForDeclared maps a declared codepage to a candidate order, nil when unknown.
func orderForDeclared(declared string) []string {
	switch declared {
	case "UTF-8", "UTF8", "65001":
		return utf8Order
	case "GBK", "GB2312", "GB18030", "936", "CP936":
		return gbkOrder
	case "ISO-8859-1", "LATIN1":
		return latin1Order
	}

	enc, err := htmlindex.Get(declared)
	if err != nil {
		return nil
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil
	}
	switch name {
	case "utf-8":
		return utf8Order
	case "gbk", "gb18030":
		return gbkOrder
	case "windows-1252":
		return latin1Order
	}
	return nil
}

// needsEncodingResolution 仅 Shapefile 与 KML/KMZ 走编码回退
func needsEncodingResolution(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp", ".kml", ".kmz":
		return true
	}
	return false
}

func isKML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".kml" || ext == ".kmz"
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
