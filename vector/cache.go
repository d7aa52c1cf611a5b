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
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SummaryCache 已加载文件摘要的缓存，仅作加速，丢失不影响正确性
type SummaryCache interface {
	Get(key string) (interface{}, bool)
	Put(key string, value interface{})
}

// 与主文件同名、影响读取结果的附属文件
var sidecarExts = []string{".prj", ".cpg", ".dbf", ".shx"}

// SummaryKey 由路径、大小和修改时间生成缓存键，主文件或任一附属文件
// (.prj .cpg .dbf .shx) 变化后键随之变化。无法 stat 的路径不参与缓存
func SummaryKey(kind, path string) (string, bool) {
	st, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	h := xxhash.New()
	_, _ = h.WriteString(path)
	writeStat(h, st)

	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range sidecarExts {
		side := base + ext
		if side == path {
			continue
		}
		sst, err := os.Stat(side)
		if err != nil {
			continue
		}
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(ext)
		writeStat(h, sst)
	}
	return kind + ":" + strconv.FormatUint(h.Sum64(), 16), true
}

func writeStat(h *xxhash.Digest, st os.FileInfo) {
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.FormatInt(st.Size(), 10))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.FormatInt(st.ModTime().UnixNano(), 10))
}
