package taskrt

import "runtime"

// config holds resolved Scheduler construction options.
type config struct {
	workers        int
	maxConcurrency int
	logger         Logger
	metricsEnabled bool
	clock          Clock
}

// Option configures a Scheduler at construction time.
type Option interface {
	apply(*config) error
}

// optionFunc implements Option.
type optionFunc struct {
	fn func(*config) error
}

func (o *optionFunc) apply(cfg *config) error {
	return o.fn(cfg)
}

// WithWorkers sets the number of worker goroutines, each with its own work
// queue. Defaults to runtime.GOMAXPROCS(0). n must be >= 1.
func WithWorkers(n int) Option {
	return &optionFunc{func(cfg *config) error {
		if n < 1 {
			return WrapError("WithWorkers", ErrInvalidWorker)
		}
		cfg.workers = n
		return nil
	}}
}

// WithMaxConcurrency overrides the compile-time worker-count ceiling
// (64 by default): NewScheduler spawns min(WithWorkers, this) workers.
// Zero (the default) leaves the package ceiling in place.
func WithMaxConcurrency(n int) Option {
	return &optionFunc{func(cfg *config) error {
		if n < 0 {
			return WrapError("WithMaxConcurrency", ErrInvalidWorker)
		}
		cfg.maxConcurrency = n
		return nil
	}}
}

// WithLogger overrides the Scheduler's Logger. The default is a no-op
// logger, so production deployments that want visibility must opt in.
func WithLogger(logger Logger) Option {
	return &optionFunc{func(cfg *config) error {
		if logger == nil {
			logger = NewNoOpLogger()
		}
		cfg.logger = logger
		return nil
	}}
}

// WithMetrics enables atomic counter collection, retrievable via
// Scheduler.Metrics. Disabled by default.
func WithMetrics(enabled bool) Option {
	return &optionFunc{func(cfg *config) error {
		cfg.metricsEnabled = enabled
		return nil
	}}
}

// WithClock overrides the Scheduler's time source. Intended for tests that
// need deterministic timer firing rather than sleeping on wall time; the
// default is the real clock (time.Now / time.AfterFunc semantics).
func WithClock(clock Clock) Option {
	return &optionFunc{func(cfg *config) error {
		if clock == nil {
			clock = NewRealClock()
		}
		cfg.clock = clock
		return nil
	}}
}

// resolveOptions applies opts over the package defaults.
func resolveOptions(opts []Option) (*config, error) {
	cfg := &config{
		workers: runtime.GOMAXPROCS(0),
		logger:  NewNoOpLogger(),
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	return cfg, nil
}
