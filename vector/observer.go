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

// Observer 接收运行指标，internal/metrics 提供 Prometheus 实现
type Observer interface {
	// DatasetOpened encoding 为成功的编码候选，attempts 为尝试次数
	DatasetOpened(encoding string, attempts int)
	OpenFailed()
	LayerSkipped()
	ExportFinished(format string, ok bool, seconds float64)
	CacheLookup(hit bool)
}

// NopObserver 不记录任何指标
type NopObserver struct{}

func (NopObserver) DatasetOpened(string, int)            {}
func (NopObserver) OpenFailed()                          {}
func (NopObserver) LayerSkipped()                        {}
func (NopObserver) ExportFinished(string, bool, float64) {}
func (NopObserver) CacheLookup(bool)                     {}
