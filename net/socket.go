//go:build linux || darwin

// Package net provides a thin, asynchronous TCP wrapper built directly
// on taskrt's fd-wait suspension point: every blocking-looking call is a
// loop around a non-blocking syscall that awaits readiness instead of
// blocking a worker. Grounded on
// original_source/libs/async/src/socket.cpp and tcp.cpp.
package net

import (
	"errors"
	stdnet "net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-taskrt"
)

// ErrConnectionReset is returned by Send when a write raises EPIPE
// (mapped here the way the original does, rather than surfacing the
// signal-flavored EPIPE directly), by Recv when a read returns zero bytes
// because the peer closed the connection, and by SendAll when a write
// transfers nothing. Any other OS error, ECONNRESET included, is returned
// as-is.
var ErrConnectionReset = errors.New("taskrt/net: connection reset")

// Socket is a non-blocking, task-suspension-driven TCP connection.
type Socket struct {
	fd      int
	lastErr error
	sched   *taskrt.Scheduler
}

// fireErr turns a terminal non-Fired Status into an error.
func fireErr(status taskrt.Status) error {
	return &taskrt.FireError{Status: status}
}

func newSocket(sched *taskrt.Scheduler, fd int) *Socket {
	return &Socket{fd: fd, sched: sched}
}

// LastError returns the most recently observed OS-level error, if any.
func (s *Socket) LastError() error { return s.lastErr }

// FD returns the underlying file descriptor, for diagnostics only.
func (s *Socket) FD() int { return s.fd }

// Connect dials address (host:port, TCP only) asynchronously, suspending
// the calling task until the connection completes, fails, or deadline
// elapses.
func Connect(ctx *taskrt.TaskContext, sched *taskrt.Scheduler, address string, deadline time.Time) (*Socket, error) {
	sa, family, err := resolveSockaddr(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := tune(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, err
	}
	if err == unix.EINPROGRESS {
		status, werr := ctx.FDWait(fd, taskrt.FDDirectionWrite, deadline)
		if werr != nil || status != taskrt.StatusFired {
			_ = unix.Close(fd)
			if werr != nil {
				return nil, werr
			}
			return nil, fireErr(status)
		}
		errno, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			_ = unix.Close(fd)
			return nil, gerr
		}
		if errno != 0 {
			_ = unix.Close(fd)
			return nil, unix.Errno(errno)
		}
	}

	return newSocket(sched, fd), nil
}

// Send writes buf once (a single, possibly partial, write), suspending
// on EAGAIN/EWOULDBLOCK until the socket is writable or deadline
// elapses.
func (s *Socket) Send(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	for {
		n, err := unix.Write(s.fd, buf)
		if err == nil {
			return n, nil
		}
		if err == unix.EPIPE {
			s.lastErr = ErrConnectionReset
			return 0, ErrConnectionReset
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			s.lastErr = err
			return 0, err
		}
		status, werr := ctx.FDWait(s.fd, taskrt.FDDirectionWrite, deadline)
		if werr != nil {
			s.lastErr = werr
			return 0, werr
		}
		if status != taskrt.StatusFired {
			s.lastErr = fireErr(status)
			return 0, s.lastErr
		}
	}
}

// SendAll writes the entirety of buf, looping Send until every byte is
// sent or a terminal error occurs.
func (s *Socket) SendAll(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.Send(ctx, buf[total:], deadline)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			s.lastErr = ErrConnectionReset
			return total, ErrConnectionReset
		}
	}
	return total, nil
}

// Recv reads once into buf, suspending on EAGAIN/EWOULDBLOCK until the
// socket is readable or deadline elapses. An orderly shutdown by the peer
// (a zero-length read) is reported as ErrConnectionReset.
func (s *Socket) Recv(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	for {
		n, err := unix.Read(s.fd, buf)
		if err == nil {
			if n == 0 {
				s.lastErr = ErrConnectionReset
				return 0, ErrConnectionReset
			}
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			s.lastErr = err
			return 0, err
		}
		status, werr := ctx.FDWait(s.fd, taskrt.FDDirectionRead, deadline)
		if werr != nil {
			s.lastErr = werr
			return 0, werr
		}
		if status != taskrt.StatusFired {
			s.lastErr = fireErr(status)
			return 0, s.lastErr
		}
	}
}

// RecvAll reads exactly len(buf) bytes, looping Recv until the buffer is
// full or a terminal error occurs.
func (s *Socket) RecvAll(ctx *taskrt.TaskContext, buf []byte, deadline time.Time) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.Recv(ctx, buf[total:], deadline)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// Listener accepts inbound TCP connections.
type Listener struct {
	fd    int
	sched *taskrt.Scheduler
}

// Listen binds and listens on address (host:port), with the given
// accept backlog.
func Listen(sched *taskrt.Scheduler, address string, backlog int) (*Listener, error) {
	sa, family, err := resolveSockaddr(address)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := tune(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &Listener{fd: fd, sched: sched}, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() (stdnet.Addr, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToAddr(sa)
}

// Accept suspends the calling task until an inbound connection arrives,
// the deadline elapses, or the listener's fd reports an error.
func (l *Listener) Accept(ctx *taskrt.TaskContext, deadline time.Time) (*Socket, error) {
	for {
		nfd, _, err := unix.Accept(l.fd)
		if err == nil {
			if terr := tune(nfd); terr != nil {
				_ = unix.Close(nfd)
				return nil, terr
			}
			return newSocket(l.sched, nfd), nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return nil, err
		}
		status, werr := ctx.FDWait(l.fd, taskrt.FDDirectionRead, deadline)
		if werr != nil {
			return nil, werr
		}
		if status != taskrt.StatusFired {
			return nil, fireErr(status)
		}
	}
}

// Close stops the listener.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}

func tune(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	return nil
}

func resolveSockaddr(address string) (unix.Sockaddr, int, error) {
	tcpAddr, err := stdnet.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, 0, err
	}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		var addr [4]byte
		copy(addr[:], ip4)
		return &unix.SockaddrInet4{Port: tcpAddr.Port, Addr: addr}, unix.AF_INET, nil
	}
	var addr [16]byte
	copy(addr[:], tcpAddr.IP.To16())
	return &unix.SockaddrInet6{Port: tcpAddr.Port, Addr: addr}, unix.AF_INET6, nil
}

func sockaddrToAddr(sa unix.Sockaddr) (stdnet.Addr, error) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &stdnet.TCPAddr{IP: stdnet.IP(a.Addr[:]), Port: a.Port}, nil
	case *unix.SockaddrInet6:
		return &stdnet.TCPAddr{IP: stdnet.IP(a.Addr[:]), Port: a.Port}, nil
	default:
		return nil, errors.New("taskrt/net: unsupported sockaddr type")
	}
}
