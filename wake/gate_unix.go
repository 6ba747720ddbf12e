// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux || darwin

package wake

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// tokenSize is the number of bytes written per wakeup.
// Writes this small are atomic on a pipe.
const tokenSize = int(unsafe.Sizeof(Token(0)))

// Gate is a self-pipe wakeup primitive.
//
// Only the owning goroutine may call Block. Wakeup may be called from any
// goroutine.
type Gate struct {
	rfd int
	wfd int
	buf [64 * tokenSize]byte
}

// New creates a gate backed by a non-blocking, close-on-exec pipe.
func New() (*Gate, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, fmt.Errorf("wake: pipe: %w", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, fmt.Errorf("wake: set nonblock: %w", err)
		}
	}
	return &Gate{rfd: fds[0], wfd: fds[1]}, nil
}

// Wakeup delivers tok to the owner.
//
// If the pipe is already full a wakeup is pending anyway and tok is dropped.
// Any other write failure means the process ran out of resources and panics.
func (g *Gate) Wakeup(tok Token) {
	b := (*[tokenSize]byte)(unsafe.Pointer(&tok))[:]
	for {
		_, err := unix.Write(g.wfd, b)
		switch {
		case err == nil, errors.Is(err, unix.EAGAIN):
			return
		case errors.Is(err, unix.EINTR):
			continue
		default:
			panic("wake: wakeup write failed: " + err.Error())
		}
	}
}

// Block parks the owner until a token arrives or timeout elapses.
// A negative timeout waits forever. Returns None on timeout.
func (g *Gate) Block(timeout time.Duration) Token {
	if tok := g.drain(); tok != None {
		return tok
	}

	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(g.rfd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if !errors.Is(err, unix.EINTR) {
				panic("wake: poll failed: " + err.Error())
			}
			if ms >= 0 {
				left := time.Until(deadline)
				if left <= 0 {
					return None
				}
				ms = int((left + time.Millisecond - 1) / time.Millisecond)
			}
			continue
		}
		if n == 0 {
			return None
		}
		if tok := g.drain(); tok != None {
			return tok
		}
	}
}

// drain empties the pipe and returns the last token read, or None.
func (g *Gate) drain() Token {
	last := None
	for {
		n, err := unix.Read(g.rfd, g.buf[:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return last
		}
		if n < tokenSize {
			return last
		}
		n -= n % tokenSize
		last = *(*Token)(unsafe.Pointer(&g.buf[n-tokenSize]))
		if last == None {
			// A zero token still counts as a wakeup.
			last = TokenStop
		}
		if n < len(g.buf) {
			return last
		}
	}
}

// Close releases both pipe ends.
func (g *Gate) Close() error {
	err1 := unix.Close(g.rfd)
	err2 := unix.Close(g.wfd)
	return errors.Join(err1, err2)
}
