package taskrt

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// promiseState is the lifecycle of a task's result container.
type promiseState int

const (
	promisePending promiseState = iota
	promiseResolved
	promiseRejected
)

// promise holds a task's eventual result. Joinable tasks additionally
// expose join, backed by a weighted semaphore used as a one-shot
// completion gate (acquired empty at construction, released once on
// completion, mirroring the original's join_sem).
type promise struct {
	mu    sync.Mutex
	state promiseState
	value any
	err   error

	joinable bool
	sem      *semaphore.Weighted

	// continuation, if set, is invoked when this promise settles — used
	// when one task awaits another.
	continuation func(value any, err error)
}

func newPromise(joinable bool) *promise {
	p := &promise{joinable: joinable}
	if joinable {
		p.sem = semaphore.NewWeighted(1)
		_ = p.sem.Acquire(context.Background(), 1)
	}
	return p
}

// resolve settles the promise with a value. Only the first call has
// effect; a promise settles exactly once.
func (p *promise) resolve(value any) {
	p.settle(value, nil)
}

// reject settles the promise with an error.
func (p *promise) reject(err error) {
	p.settle(nil, err)
}

func (p *promise) settle(value any, err error) {
	p.mu.Lock()
	if p.state != promisePending {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.state = promiseRejected
		p.err = err
	} else {
		p.state = promiseResolved
		p.value = value
	}
	cont := p.continuation
	p.mu.Unlock()

	if p.joinable {
		p.sem.Release(1)
	}
	if cont != nil {
		cont(value, err)
	}
}

// result returns the settled value/error; ok is false if still pending.
func (p *promise) result() (value any, err error, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == promisePending {
		return nil, nil, false
	}
	return p.value, p.err, true
}

// onSettle registers a continuation to run when the promise settles. If
// it has already settled, the continuation runs inline, immediately.
func (p *promise) onSettle(fn func(value any, err error)) {
	p.mu.Lock()
	if p.state != promisePending {
		value, err := p.value, p.err
		p.mu.Unlock()
		fn(value, err)
		return
	}
	p.continuation = fn
	p.mu.Unlock()
}

// join blocks the calling goroutine until the promise settles. Only valid
// for joinable tasks.
func (p *promise) join() {
	if !p.joinable {
		return
	}
	_ = p.sem.Acquire(context.Background(), 1)
	p.sem.Release(1)
}
