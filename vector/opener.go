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
	"github.com/rs/zerolog"
)

// DatasetOpener 按编码候选依次尝试打开数据集
type DatasetOpener struct {
	engine   Engine
	resolver *EncodingResolver
	observer Observer
	log      zerolog.Logger
}

func NewDatasetOpener(engine Engine, resolver *EncodingResolver, observer Observer, log zerolog.Logger) *DatasetOpener {
	if observer == nil {
		observer = NopObserver{}
	}
	return &DatasetOpener{engine: engine, resolver: resolver, observer: observer, log: log}
}

// Open 以只读方式打开数据集。所有候选都失败时返回一个 KindFileRead 错误
func (o *DatasetOpener) Open(path string) (Dataset, error) {
	if !needsEncodingResolution(path) {
		ds, err := o.engine.Open(path)
		if err != nil {
			o.observer.OpenFailed()
			return nil, readError(err, "无法打开文件")
		}
		o.observer.DatasetOpened("", 1)
		return ds, nil
	}

	candidates := o.resolver.Resolve(path)
	for i, enc := range candidates {
		name := enc
		if name == EncodingDefault {
			name = "系统默认"
		}
		o.log.Info().Str("path", path).Str("encoding", name).Msg("尝试使用编码打开矢量文件")

		var (
			ds  Dataset
			err error
		)
		if enc == EncodingDefault {
			ds, err = o.engine.Open(path)
		} else {
			ds, err = o.engine.Open(path, "ENCODING="+enc)
		}
		if err != nil {
			o.log.Warn().Err(err).Str("encoding", name).Msg("编码打开失败")
			continue
		}
		o.log.Info().Str("encoding", name).Msg("成功使用编码打开")
		o.observer.DatasetOpened(enc, i+1)
		return ds, nil
	}

	o.observer.OpenFailed()
	return nil, readError(nil, "无法打开文件: 尝试了所有编码都失败 (%d 种)", len(candidates))
}
