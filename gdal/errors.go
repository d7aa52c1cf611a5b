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
)

// lastError 执行 fn 并在失败时带上 CPL 错误信息。
// CPL 错误状态是线程局部的，因此整个调用锁定在当前线程上
func lastError(fn func() bool, format string, args ...interface{}) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	C.CPLErrorReset()
	if fn() {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if cpl := C.GoString(C.CPLGetLastErrorMsg()); cpl != "" {
		return fmt.Errorf("%s: %w", msg, errors.New(cpl))
	}
	return errors.New(msg)
}
