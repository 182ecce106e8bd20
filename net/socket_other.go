//go:build !linux && !darwin

package net

import (
	stdnet "net"
	"time"

	"github.com/joeycumines/go-taskrt"
)

// Socket is a stub on platforms without a wired-up readiness mechanism.
type Socket struct{}

func (s *Socket) LastError() error { return taskrt.ErrPlatformUnsupported }
func (s *Socket) FD() int          { return -1 }

func (s *Socket) Send(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	return 0, taskrt.ErrPlatformUnsupported
}

func (s *Socket) SendAll(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	return 0, taskrt.ErrPlatformUnsupported
}

func (s *Socket) Recv(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	return 0, taskrt.ErrPlatformUnsupported
}

func (s *Socket) RecvAll(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	return 0, taskrt.ErrPlatformUnsupported
}

func (s *Socket) Close() error { return nil }

func Connect(ctx *taskrt.TaskContext, sched *taskrt.Scheduler, address string, deadline time.Time) (*Socket, error) {
	return nil, taskrt.ErrPlatformUnsupported
}

// Listener is a stub on platforms without a wired-up readiness mechanism.
type Listener struct{}

func Listen(sched *taskrt.Scheduler, address string, backlog int) (*Listener, error) {
	return nil, taskrt.ErrPlatformUnsupported
}

func (l *Listener) Addr() (stdnet.Addr, error) {
	return nil, taskrt.ErrPlatformUnsupported
}

func (l *Listener) Accept(ctx *taskrt.TaskContext, deadline time.Time) (*Socket, error) {
	return nil, taskrt.ErrPlatformUnsupported
}

func (l *Listener) Close() error { return nil }
