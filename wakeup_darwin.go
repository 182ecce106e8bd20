//go:build darwin

package taskrt

import "syscall"

// newSelfWakeFD creates a self-pipe used to interrupt the reactor's poll,
// mirroring the original's "self-wake object" (poll.hpp's Poke mechanism).
// Returns the read end and write end.
func newSelfWakeFD() (int, int, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return 0, 0, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

// signalSelfWake writes a single byte to the pipe, waking one
// PollAndDispatch call.
func signalSelfWake(writeFD int) {
	var b [1]byte
	_, _ = syscall.Write(writeFD, b[:])
}

// drainSelfWake consumes all pending bytes on the pipe.
func drainSelfWake(readFD int) {
	var buf [64]byte
	for {
		if _, err := syscall.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}

func closeSelfWakeFD(readFD, writeFD int) {
	_ = syscall.Close(readFD)
	if writeFD != readFD {
		_ = syscall.Close(writeFD)
	}
}
