//go:build linux

package taskrt

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxPollerFDs bounds direct fd-array indexing, matching the teacher's
// epoll poller.
const maxPollerFDs = 65536

// pollerEntry stores the waiter registered against one fd.
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

// fastPoller manages fd readiness registration using epoll, indexing
// registrations directly against a *fdWaiter rather than a callback
// closure: a closure captured per registration would retain whatever task
// graph is waiting on it, where a pointer dispatch only retains the one
// waiter, mirroring the original C++'s epoll_data.ptr = event.
type fastPoller struct {
	_        [64]byte //nolint:unused
	epfd     int32
	_        [60]byte //nolint:unused
	version  atomic.Uint64
	eventBuf [256]unix.EpollEvent
	fds      [maxPollerFDs]pollerEntry
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func newPoller() (*fastPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &fastPoller{epfd: int32(epfd)}, nil
}

func (p *fastPoller) Close() error {
	p.closed.Store(true)
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

func (p *fastPoller) RegisterFD(fd int, dir FDDirection, w *fdWaiter) error {
	if p.closed.Load() {
		return ErrPlatformUnsupported
	}
	if fd < 0 || fd >= maxPollerFDs {
		return ErrInvalidWorker
	}
	events := ioEventRead
	if dir == FDDirectionWrite {
		events = ioEventWrite
	}

	p.fdMu.Lock()
	p.fds[fd] = pollerEntry{waiter: w, events: events, active: true}
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = pollerEntry{}
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *fastPoller) UnregisterFD(fd int) error {
	if fd < 0 || fd >= maxPollerFDs {
		return ErrInvalidWorker
	}
	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return nil
	}
	p.fds[fd] = pollerEntry{}
	p.version.Add(1)
	p.fdMu.Unlock()
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

// PollAndDispatch waits up to timeoutMs for readiness events and invokes
// each ready waiter's onReady, translating EPOLLERR/EPOLLHUP into a
// non-nil errno.
func (p *fastPoller) PollAndDispatch(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, nil
	}
	v := p.version.Load()
	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if p.version.Load() != v {
		return 0, nil
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd < 0 || fd >= maxPollerFDs {
			continue
		}
		p.fdMu.RLock()
		entry := p.fds[fd]
		p.fdMu.RUnlock()
		if !entry.active || entry.waiter == nil {
			continue
		}
		raw := p.eventBuf[i].Events
		var errno error
		if raw&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			errno = errPollHangup
		}
		entry.waiter.onReady(errno)
	}
	return n, nil
}

func eventsToEpoll(events ioEvents) uint32 {
	var e uint32
	if events&ioEventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&ioEventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}
