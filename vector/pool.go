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
	"context"
	"runtime"
)

// Pool 限制同时持有原生句柄的请求数。每个请求仍独占自己的句柄
type Pool struct {
	semaphore chan struct{}
	size      int
}

// DefaultPoolSize GDAL 操作密集，取 CPU 核心数 * 2，限制在 [4, 16]
func DefaultPoolSize() int {
	size := runtime.NumCPU() * 2
	if size < 4 {
		size = 4
	}
	if size > 16 {
		size = 16
	}
	return size
}

// NewPool size <= 0 时使用 DefaultPoolSize
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize()
	}
	return &Pool{semaphore: make(chan struct{}, size), size: size}
}

func (p *Pool) Size() int { return p.size }

// Acquire 获取工作槽，ctx 取消时返回其错误
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return newError(KindUnknown, ctx.Err(), "等待工作槽超时")
	}
}

// Release 释放工作槽
func (p *Pool) Release() {
	<-p.semaphore
}

// Do 在工作槽内执行 fn。nil Pool 直接执行
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if p == nil {
		return fn()
	}
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn()
}
