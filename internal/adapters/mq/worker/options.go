package worker

import (
	"time"

	"github.com/okian/flickrank/pkg/logger"
)

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithName sets the writer name used in logs.
func WithName(name string) Option {
	return func(w *Writer) {
		if name != "" {
			w.name = name
			w.logger = w.logger.Named(name)
		}
	}
}

// WithLogger sets a custom logger for the writer.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSaveTimeout bounds each SaveRating call.
func WithSaveTimeout(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithRetries sets how many times a failed save is retried, with a linear
// delay between attempts.
func WithRetries(n int, delay time.Duration) Option {
	return func(w *Writer) {
		if n >= 0 {
			w.retries = n
		}
		if delay >= 0 {
			w.retryDelay = delay
		}
	}
}
