package session

import (
	"math/rand"

	"github.com/okian/flickrank/pkg/logger"
)

// Option configures a Session.
type Option func(*Session)

// WithPersister sets where committed opponent ratings are written.
func WithPersister(p Persister) Option {
	return func(s *Session) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRand sets the random source used for opponent selection.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		s.rng = r
	}
}

// WithListener registers a callback invoked after every emitted event.
// It runs outside the session lock.
func WithListener(fn Listener) Option {
	return func(s *Session) {
		s.listener = fn
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}
