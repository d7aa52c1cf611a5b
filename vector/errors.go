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
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind int

const (
	KindUnknown Kind = iota
	KindFileNotFound
	KindFileRead
	KindFileWrite
	KindInvalidFormat
	KindParse
	KindIO
)

var kindNames = map[Kind]string{
	KindUnknown:       "Unknown",
	KindFileNotFound:  "FileNotFound",
	KindFileRead:      "FileReadError",
	KindFileWrite:     "FileWriteError",
	KindInvalidFormat: "InvalidFormat",
	KindParse:         "ParseError",
	KindIO:            "IoError",
}

var kindPrefixes = map[Kind]string{
	KindUnknown:       "Unknown error",
	KindFileNotFound:  "File not found",
	KindFileRead:      "File read error",
	KindFileWrite:     "File write error",
	KindInvalidFormat: "Invalid file format",
	KindParse:         "Parse error",
	KindIO:            "IO error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Error 对外暴露的结构化错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	prefix, ok := kindPrefixes[e.Kind]
	if !ok {
		prefix = kindPrefixes[KindUnknown]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func readError(err error, format string, args ...interface{}) *Error {
	return newError(KindFileRead, err, format, args...)
}

func writeError(err error, format string, args ...interface{}) *Error {
	return newError(KindFileWrite, err, format, args...)
}

func formatError(err error, format string, args ...interface{}) *Error {
	return newError(KindInvalidFormat, err, format, args...)
}

// KindOf 返回错误分类，非 *Error 一律视为 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind 判断错误链中是否包含指定分类的错误
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// recoverError converts a recovered panic into an Unknown error.
func recoverError(op string, r interface{}) error {
	if err, ok := r.(error); ok {
		return newError(KindUnknown, err, "%s 发生异常", op)
	}
	return newError(KindUnknown, nil, "%s 发生异常: %v", op, r)
}
