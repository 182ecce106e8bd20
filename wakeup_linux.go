//go:build linux

package taskrt

import (
	"golang.org/x/sys/unix"
)

// newSelfWakeFD creates an eventfd used to interrupt the reactor's poll,
// mirroring the original's "self-wake object" (poll.hpp's Poke mechanism).
// The same fd is both the read and write end.
func newSelfWakeFD() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

// signalSelfWake writes to the eventfd, waking one PollAndDispatch call.
func signalSelfWake(writeFD int) {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(writeFD, buf[:])
}

// drainSelfWake consumes all pending wake notifications on the eventfd.
func drainSelfWake(readFD int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}

func closeSelfWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	if writeFD != readFD {
		_ = unix.Close(writeFD)
	}
}
