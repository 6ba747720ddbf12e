// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wake provides a cross-goroutine suspend/resume primitive.
//
// A [Gate] is owned by exactly one goroutine, which parks in [Gate.Block].
// Any goroutine may deliver a [Token] with [Gate.Wakeup], including before
// the owner starts blocking; the token stays buffered until the owner next
// blocks. Several wakeups without an intervening Block coalesce into at least
// one return from Block. Token values may merge, so callers must re-check the
// state they were waiting for instead of trusting the token.
//
// On linux and darwin the gate is a self-pipe polled with poll(2). Elsewhere
// it falls back to a one-slot channel with the same semantics.
package wake

import "time"

// Token identifies the reason for a wakeup.
type Token uint32

// None is returned by Block when the timeout elapsed without a wakeup.
const None Token = 0

const (
	// TokenData reports that a queue the owner waits on gained items.
	TokenData Token = 1 + iota
	// TokenSpace reports that a queue the owner waits on gained free slots.
	TokenSpace
	// TokenFile reports an open-file queue transition.
	TokenFile
	// TokenWindow reports released source buffer space.
	TokenWindow
	// TokenStop asks the owner to re-check its stop condition.
	TokenStop
)

// Forever makes Block wait without a timeout.
const Forever time.Duration = -1
