//go:build !linux && !darwin

package taskrt

// newSelfWakeFD has no fd-based implementation on unsupported platforms.
// The stub poller there returns at once without waiting, so the reactor
// loop re-checks its timers continuously instead of blocking.
func newSelfWakeFD() (int, int, error) { return -1, -1, nil }

func signalSelfWake(int) {}

func drainSelfWake(int) {}

func closeSelfWakeFD(int, int) {}
