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
	"regexp"
	"strconv"
	"strings"
)

// 支持 "key":value 与 "key":"value" 两种写法
var kmlPairPattern = regexp.MustCompile(`"([^"]+)":([^"\s]+|"[^"]*")`)

// KMLPair description 中解析出的一个键值对
type KMLPair struct {
	Key   string
	Value interface{}
}

// ParseKMLDescription 解析 KML description 字段，如
// "OBJECTID":1 "HNNM":"岷江" "RIVER":"杂谷脑河"
// 结果按出现顺序返回
func ParseKMLDescription(description string) []KMLPair {
	matches := kmlPairPattern.FindAllStringSubmatch(description, -1)
	pairs := make([]KMLPair, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, KMLPair{Key: m[1], Value: parseKMLValue(m[2])})
	}
	return pairs
}

func parseKMLValue(token string) interface{} {
	if len(token) >= 2 && strings.HasPrefix(token, `"`) && strings.HasSuffix(token, `"`) {
		return token[1 : len(token)-1]
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return token
}
