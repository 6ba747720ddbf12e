// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux && !darwin

package wake

import (
	"time"

	"code.hybscloud.com/atomix"
)

// Gate is a channel-backed wakeup primitive for platforms without the
// self-pipe implementation.
//
// Only the owning goroutine may call Block. Wakeup may be called from any
// goroutine.
type Gate struct {
	ch   chan struct{}
	last atomix.Uint32
}

// New creates a gate.
func New() (*Gate, error) {
	return &Gate{ch: make(chan struct{}, 1)}, nil
}

// Wakeup delivers tok to the owner. Pending wakeups coalesce.
func (g *Gate) Wakeup(tok Token) {
	if tok == None {
		tok = TokenStop
	}
	g.last.StoreRelease(uint32(tok))
	select {
	case g.ch <- struct{}{}:
	default:
	}
}

// Block parks the owner until a token arrives or timeout elapses.
// A negative timeout waits forever. Returns None on timeout.
func (g *Gate) Block(timeout time.Duration) Token {
	if timeout < 0 {
		<-g.ch
		return Token(g.last.LoadAcquire())
	}
	select {
	case <-g.ch:
		return Token(g.last.LoadAcquire())
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-g.ch:
		return Token(g.last.LoadAcquire())
	case <-t.C:
		return None
	}
}

// Close is a no-op for the channel gate.
func (g *Gate) Close() error {
	return nil
}
