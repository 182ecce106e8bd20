//go:build darwin

package taskrt

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxPollerFDLimit bounds dynamic growth of the fd-indexed registration
// slice, matching the teacher's kqueue poller.
const maxPollerFDLimit = 100000000

// fastPoller manages fd readiness registration using kqueue, indexing
// registrations directly against a *fdWaiter (see poller_linux.go for why
// a pointer, not a closure).
type fastPoller struct {
	_        [64]byte //nolint:unused
	kq       int32
	_        [60]byte //nolint:unused
	eventBuf [256]unix.Kevent_t
	fds      []pollerEntry
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

type pollerEntry struct {
	waiter *fdWaiter
	events ioEvents
	active bool
}

type ioEvents uint32

const (
	ioEventRead ioEvents = 1 << iota
	ioEventWrite
)

func newPoller() (*fastPoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &fastPoller{kq: int32(kq), fds: make([]pollerEntry, 1024)}, nil
}

func (p *fastPoller) Close() error {
	p.closed.Store(true)
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

func (p *fastPoller) RegisterFD(fd int, dir FDDirection, w *fdWaiter) error {
	if p.closed.Load() {
		return ErrPlatformUnsupported
	}
	if fd < 0 || fd >= maxPollerFDLimit {
		return ErrInvalidWorker
	}
	events := ioEventRead
	if dir == FDDirectionWrite {
		events = ioEventWrite
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) {
		newSize := fd*2 + 1
		if newSize > maxPollerFDLimit {
			newSize = maxPollerFDLimit + 1
		}
		grown := make([]pollerEntry, newSize)
		copy(grown, p.fds)
		p.fds = grown
	}
	p.fds[fd] = pollerEntry{waiter: w, events: events, active: true}
	p.fdMu.Unlock()

	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(int(p.kq), kevents, nil, nil); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = pollerEntry{}
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *fastPoller) UnregisterFD(fd int) error {
	if fd < 0 {
		return ErrInvalidWorker
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return nil
	}
	events := p.fds[fd].events
	p.fds[fd] = pollerEntry{}
	p.fdMu.Unlock()

	kevents := eventsToKevents(fd, events, unix.EV_DELETE)
	_, _ = unix.Kevent(int(p.kq), kevents, nil, nil)
	return nil
}

// PollAndDispatch waits up to timeoutMs for readiness events and invokes
// each ready waiter's onReady.
func (p *fastPoller) PollAndDispatch(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, nil
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		if fd < 0 {
			continue
		}
		p.fdMu.RLock()
		var entry pollerEntry
		if fd < len(p.fds) {
			entry = p.fds[fd]
		}
		p.fdMu.RUnlock()
		if !entry.active || entry.waiter == nil {
			continue
		}
		var errno error
		kev := &p.eventBuf[i]
		if kev.Flags&(unix.EV_ERROR|unix.EV_EOF) != 0 {
			errno = errPollHangup
		}
		entry.waiter.onReady(errno)
	}
	return n, nil
}

func eventsToKevents(fd int, events ioEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&ioEventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&ioEventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}
