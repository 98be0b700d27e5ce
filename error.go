// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"context"
	"errors"

	"code.hybscloud.com/iox"
)

// Status is the outcome class of a kernel operation.
type Status uint8

const (
	StatusOk Status = iota
	StatusTimeout
	StatusWouldBlock
	StatusInvalidHandle
	StatusBadState
	StatusPeerClosed
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusWouldBlock:
		return "would block"
	case StatusInvalidHandle:
		return "invalid handle"
	case StatusBadState:
		return "bad state"
	case StatusPeerClosed:
		return "peer closed"
	default:
		return "unknown"
	}
}

var (
	// ErrTimeout reports that a wait phase elapsed before its shuttle completed.
	ErrTimeout = errors.New("libos: timeout")
	// ErrWouldBlock reports that a NonBlocking phase found no waiting peer.
	// It is iox.ErrWouldBlock, so iox.IsWouldBlock recognizes it.
	ErrWouldBlock = iox.ErrWouldBlock
	// ErrInvalidHandle reports an unknown, stale or foreign port or shuttle.
	ErrInvalidHandle = errors.New("libos: invalid handle")
	// ErrBadState reports a shuttle in the wrong state for the request.
	ErrBadState = errors.New("libos: bad state")
	// ErrPeerClosed reports that the port or peer went away.
	ErrPeerClosed = errors.New("libos: peer closed")
)

// StatusOf maps an error returned by this package to its Status.
// Context cancellation maps to StatusTimeout.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOk
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return StatusTimeout
	case iox.IsWouldBlock(err):
		return StatusWouldBlock
	case errors.Is(err, ErrInvalidHandle):
		return StatusInvalidHandle
	case errors.Is(err, ErrBadState):
		return StatusBadState
	case errors.Is(err, ErrPeerClosed):
		return StatusPeerClosed
	default:
		return StatusBadState
	}
}
