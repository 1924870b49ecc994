package bulk

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring a [Downloader] via [New].
type Option func(*options) error

type options struct {
	logger       *slog.Logger
	tracer       trace.Tracer
	requireItems bool
}

// WithLogger injects a custom [slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		opts.logger = logger
		return nil
	}
}

// WithTracer records a span per download with the given tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		opts.tracer = tracer
		return nil
	}
}

// WithRequireItems fails a download with [ErrEmptyCollection] when the
// owning collection reports no items, instead of requesting an archive
// the server will return empty.
func WithRequireItems() Option {
	return func(opts *options) error {
		opts.requireItems = true
		return nil
	}
}
