package fanout

import (
	log "github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"
	"golang.org/x/time/rate"
)

// config holds Distributor configuration.
type config struct {
	// Logger receives structured progress and diagnostic messages.
	// Default: logrus standard logger.
	Logger log.FieldLogger

	// DefaultBufferCapacity is used for workers registered with a zero
	// buffer capacity.
	// Default: 64.
	DefaultBufferCapacity int

	// WaitWarnThreshold is the waiting-time percentage above which the
	// run-end summary is logged at warning level instead of info. The
	// coordinator spends this time blocked waiting for an empty-buffer
	// notification; a high percentage means workers outpace the source.
	// Default: 90.
	WaitWarnThreshold float64

	// ReadLimiter, when non-nil, gates every Reader batch read. Tokens are
	// consumed per requested row, so the limiter's burst must be at least
	// the largest worker buffer capacity.
	// Default: nil (no throttling).
	ReadLimiter *rate.Limiter
}

// Option configures a Distributor. Use New(reader, opts...) to construct one.
// An Option returns an error on invalid input instead of panicking.
type Option func(*config) error

// WithLogger sets the logger receiving progress and diagnostic messages.
func WithLogger(logger log.FieldLogger) Option {
	return func(cfg *config) error {
		if logger == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.Logger = logger
		return nil
	}
}

// WithDefaultBufferCapacity sets the queue capacity applied to workers
// registered with a zero capacity (must be > 0).
func WithDefaultBufferCapacity(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithDefaultBufferCapacity requires n > 0"))
		}
		cfg.DefaultBufferCapacity = n
		return nil
	}
}

// WithWaitWarnThreshold sets the waiting-time percentage above which the
// run-end summary is logged at warning level (must be within [0, 100]).
func WithWaitWarnThreshold(pct float64) Option {
	return func(cfg *config) error {
		if pct < 0 || pct > 100 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithWaitWarnThreshold requires a percentage within [0, 100]"))
		}
		cfg.WaitWarnThreshold = pct
		return nil
	}
}

// WithReadRateLimit throttles Reader batch reads with the provided limiter.
// Tokens are consumed per requested row; the limiter's burst must be at least
// the largest worker buffer capacity or refills will fail.
func WithReadRateLimit(lim *rate.Limiter) Option {
	return func(cfg *config) error {
		if lim == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithReadRateLimit requires a non-nil limiter"))
		}
		cfg.ReadLimiter = lim
		return nil
	}
}
