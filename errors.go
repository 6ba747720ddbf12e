// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package daq

import "code.hybscloud.com/iox"

// ErrWouldBlock is returned by Enqueue on a full queue and by Dequeue on an
// empty one.
//
// It is a control flow signal, not a failure: pipeline stages never see it
// because they park on a gate instead, see BoundedQueue.WaitInsert and
// BoundedQueue.WaitRemove. It aliases [iox.ErrWouldBlock].
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsNonFailure reports whether err is nil or a control flow signal.
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
