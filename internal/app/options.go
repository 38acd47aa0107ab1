package service

import (
	"time"

	"github.com/okian/flickrank/internal/adapters/storage"
	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithParams sets the engine parameters shared by every session.
func WithParams(p model.Params) Option {
	return func(s *Service) {
		s.params = p.Clone()
	}
}

// WithStore sets the durable rating store. The default keeps nothing.
func WithStore(st storage.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithQueueSize sets the capacity of the durable write queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithIdleTTL sets how long a session may sit untouched before it is reaped.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithReaperSchedule sets the cron spec of the idle-session reaper,
// e.g. "@every 1m". An empty spec disables the reaper.
func WithReaperSchedule(spec string) Option {
	return func(s *Service) {
		s.reaperSchedule = spec
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandSeed makes opponent selection reproducible. Session n is seeded
// with seed+n.
func WithRandSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = &seed
	}
}
