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
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xiaofuX1/MiniGIS/vector"
)

// Summaries 有界的数据集摘要缓存，键由 vector.SummaryKey 生成
type Summaries struct {
	lru *lru.Cache[string, interface{}]
}

var _ vector.SummaryCache = (*Summaries)(nil)

func New(size int) (*Summaries, error) {
	if size <= 0 {
		return nil, fmt.Errorf("缓存容量必须大于 0: %d", size)
	}
	c, err := lru.New[string, interface{}](size)
	if err != nil {
		return nil, err
	}
	return &Summaries{lru: c}, nil
}

func (s *Summaries) Get(key string) (interface{}, bool) {
	return s.lru.Get(key)
}

func (s *Summaries) Put(key string, value interface{}) {
	s.lru.Add(key, value)
}

func (s *Summaries) Len() int { return s.lru.Len() }

// Purge 清空缓存
func (s *Summaries) Purge() { s.lru.Purge() }
