package gourdianauth

import (
	"log/slog"
	"time"
)

type options struct {
	logger  *slog.Logger
	now     func() time.Time
	metrics *Metrics

	newToken func() (string, error)
}

// Option customizes a JWTMaker, MemorySessionRegistry, RedisSessionRegistry or Coordinator.
type Option func(*options)

// WithLogger sets the structured logger. The default discards all records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces time.Now. Intended for tests that need exact expiry boundaries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics records issuance, rotation, verification and purge outcomes.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// withTokenSource replaces the refresh token generator of a registry.
func withTokenSource(newToken func() (string, error)) Option {
	return func(o *options) {
		if newToken != nil {
			o.newToken = newToken
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		newToken: newRefreshToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
