//go:build !linux && !darwin

package taskrt

// fastPoller is a stub on platforms without a wired-up readiness
// mechanism. Every registration fails with ErrPlatformUnsupported; timers
// and plain task scheduling are unaffected.
type fastPoller struct{}

func newPoller() (*fastPoller, error) {
	return &fastPoller{}, nil
}

func (p *fastPoller) Close() error { return nil }

func (p *fastPoller) RegisterFD(fd int, dir FDDirection, w *fdWaiter) error {
	return ErrPlatformUnsupported
}

func (p *fastPoller) UnregisterFD(fd int) error { return nil }

func (p *fastPoller) PollAndDispatch(timeoutMs int) (int, error) { return 0, nil }
