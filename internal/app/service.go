// Package service composes the corpus, durable store, write queue and
// comparison sessions behind the operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	writequeue "github.com/okian/flickrank/internal/adapters/mq/queue"
	"github.com/okian/flickrank/internal/adapters/mq/worker"
	"github.com/okian/flickrank/internal/adapters/repository"
	"github.com/okian/flickrank/internal/adapters/storage"
	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/internal/domain/scale"
	"github.com/okian/flickrank/internal/domain/session"
	"github.com/okian/flickrank/internal/domain/types"
	"github.com/okian/flickrank/pkg/logger"
	"github.com/okian/flickrank/pkg/metrics"
)

const (
	defaultQueueSize      = 4096
	defaultIdleTTL        = 30 * time.Minute
	defaultReaperSchedule = "@every 1m"
)

type tracked struct {
	sess    *session.Session
	touched time.Time
}

// Service implements the API dependencies for the rating system.
type Service struct {
	mu sync.RWMutex

	// Core components
	corpus *repository.MemoryStore
	store  storage.Store
	queue  *writequeue.InMemoryQueue
	writer *worker.Writer
	sink   *worker.Sink
	reaper *cron.Cron

	// Sessions by id
	sessions map[string]*tracked
	created  int64

	// Configuration
	params         model.Params
	queueSize      int
	idleTTL        time.Duration
	reaperSchedule string
	seed           *int64
	now            func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		store:          storage.Discard{},
		sessions:       make(map[string]*tracked),
		params:         model.DefaultParams(),
		queueSize:      defaultQueueSize,
		idleTTL:        defaultIdleTTL,
		reaperSchedule: defaultReaperSchedule,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the durable corpus into memory and starts the writer and reaper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.params.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting rating service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.corpus = repository.NewMemoryStore(runCtx)
	loaded, err := s.bootstrap(ctx)
	if err != nil {
		cancel()
		_ = s.corpus.Close()
		return fmt.Errorf("load corpus: %w", err)
	}

	s.queue = writequeue.NewInMemoryQueue(writequeue.WithCapacity(s.queueSize))
	s.sink = worker.NewSink(s.queue)
	s.writer = worker.NewWriter(s.queue, s.store, worker.WithLogger(s.logger.Named("writer")))
	go s.writer.Run(runCtx)

	if s.reaperSchedule != "" {
		s.reaper = cron.New()
		if _, err := s.reaper.AddFunc(s.reaperSchedule, func() { s.Reap(runCtx) }); err != nil {
			cancel()
			_ = s.queue.Close()
			_ = s.corpus.Close()
			return fmt.Errorf("reaper schedule %q: %w", s.reaperSchedule, err)
		}
		s.reaper.Start()
	}

	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("loadedItems", loaded),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("idleTTL", s.idleTTL),
		logger.String("reaperSchedule", s.reaperSchedule),
		logger.String("followUpPolicy", s.params.FollowUpPolicy),
	)
	return nil
}

func (s *Service) bootstrap(ctx context.Context) (int, error) {
	items, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if !scale.Valid(s.params, it.Rating) {
			s.logger.Warn(ctx, "skipping stored item with out-of-range rating",
				logger.String("category", it.Category),
				logger.String("itemID", it.ID),
				logger.Float64("rating", it.Rating))
			continue
		}
		if err := s.corpus.Put(ctx, it); err != nil {
			s.logger.Warn(ctx, "skipping invalid stored item", logger.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// Stop stops the reaper, drains pending durable writes and closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping rating service...")

	if s.reaper != nil {
		<-s.reaper.Stop().Done()
	}
	_ = s.queue.Close()
	if err := s.writer.Drain(ctx); err != nil {
		s.logger.Warn(ctx, "pending writes not drained", logger.Error(err))
	}
	s.cancel()
	_ = s.corpus.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.logger.Info(ctx, "rating service stopped")
}

// StartSession creates a session for a new item and presents its first
// comparison.
func (s *Service) StartSession(ctx context.Context, category, itemID, sentiment string) (session.Event, error) {
	if err := s.ready(); err != nil {
		return session.Event{}, err
	}
	sent, err := model.ParseSentiment(sentiment)
	if err != nil {
		return session.Event{}, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return session.Event{}, fmt.Errorf("missing category: %w", model.ErrInvalidSessionInput)
	}

	s.mu.Lock()
	s.created++
	var rng *rand.Rand
	if s.seed != nil {
		rng = rand.New(rand.NewSource(*s.seed + s.created)) //nolint:gosec // selection is not security sensitive
	}
	s.mu.Unlock()

	opts := []session.Option{
		session.WithPersister(s.sink),
		session.WithLogger(s.logger.Named("session")),
		session.WithListener(s.observe),
	}
	if rng != nil {
		opts = append(opts, session.WithRand(rng))
	}
	sess, err := session.New(s.params, s.corpus, model.CandidateItem{ID: strings.TrimSpace(itemID), Category: category}, opts...)
	if err != nil {
		return session.Event{}, err
	}

	s.track(sess)
	ev, err := sess.Start(ctx, sent)
	if err != nil {
		s.forget(sess.ID())
		return session.Event{}, err
	}
	metrics.RecordSessionStarted()
	return ev, nil
}

// Submit answers the outstanding comparison of a session.
func (s *Service) Submit(ctx context.Context, id string, round int, outcome string) (session.Event, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return session.Event{}, err
	}
	o, err := model.ParseOutcome(outcome)
	if err != nil {
		return session.Event{}, err
	}
	ev, err := sess.Submit(ctx, round, o)
	if err != nil && ev.Kind == "" {
		return ev, err
	}
	metrics.RecordRound(string(o))
	return ev, err
}

// Abort abandons a session and drops it from the registry.
func (s *Service) Abort(ctx context.Context, id string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := sess.Abort(ctx); err != nil {
		return err
	}
	s.forget(id)
	return nil
}

// Snapshot returns the observable state of a session.
func (s *Service) Snapshot(_ context.Context, id string) (session.Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// PutItem seeds or overwrites a rated item and persists it.
func (s *Service) PutItem(ctx context.Context, category, id string, rating float64, comparisons int) (types.Entry, error) {
	if err := s.ready(); err != nil {
		return types.Entry{}, err
	}
	if !scale.Valid(s.params, rating) {
		return types.Entry{}, fmt.Errorf("rating %v outside [%v, %v]: %w",
			rating, s.params.MinRating, s.params.MaxRating, model.ErrInvalidRatingInput)
	}
	if comparisons < 0 {
		return types.Entry{}, fmt.Errorf("comparisons played %d: %w", comparisons, model.ErrInvalidRatingInput)
	}
	it := model.RatedItem{
		ID:                strings.TrimSpace(id),
		Category:          strings.TrimSpace(category),
		Rating:            scale.Round1(rating),
		ComparisonsPlayed: comparisons,
	}
	if it.ID == "" || it.Category == "" {
		return types.Entry{}, fmt.Errorf("missing category or id: %w", model.ErrInvalidRatingInput)
	}
	if err := s.corpus.Put(ctx, it); err != nil {
		return types.Entry{}, err
	}
	if err := s.sink.SaveSeed(ctx, writeFor(it)); err != nil {
		s.logger.Warn(ctx, "seeded item not persisted",
			logger.String("category", it.Category),
			logger.String("itemID", it.ID),
			logger.Error(err))
	}
	return types.NewEntry(0, it), nil
}

// Items returns up to limit items of a category in rank order. A limit of
// zero or less returns all of them.
func (s *Service) Items(ctx context.Context, category string, limit int) ([]types.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	n := s.corpus.Count(ctx, category)
	if n == 0 {
		return []types.Entry{}, nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	entries, err := s.corpus.TopN(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = types.NewEntry(e.Rank, e.Item)
	}
	return out, nil
}

// Stats returns the rating statistics of a category.
func (s *Service) Stats(ctx context.Context, category string) (types.CorpusStats, error) {
	if err := s.ready(); err != nil {
		return types.CorpusStats{}, err
	}
	st, err := s.corpus.Stats(ctx, category)
	if err != nil {
		return types.CorpusStats{}, err
	}
	return types.CorpusStats{
		Category: category,
		Count:    st.Count,
		Average:  st.Average,
		Min:      st.Min,
		Max:      st.Max,
	}, nil
}

// Reap drops sessions idle for longer than the idle TTL. Sessions still
// waiting on an outcome are aborted first. It returns how many were dropped.
func (s *Service) Reap(ctx context.Context) int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var stale []*session.Session
	for id, t := range s.sessions {
		if t.touched.Before(cutoff) {
			stale = append(stale, t.sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		switch sess.State() {
		case session.AwaitingSentiment, session.RunningRound:
			_ = sess.Abort(ctx)
		}
	}
	if len(stale) > 0 {
		metrics.RecordSessionsReaped(len(stale))
		s.logger.Info(ctx, "reaped idle sessions", logger.Int("count", len(stale)))
	}
	s.updateActive()
	return len(stale)
}

// ActiveSessions returns the number of sessions still in progress.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.sessions {
		switch t.sess.State() {
		case session.AwaitingSentiment, session.RunningRound:
			n++
		}
	}
	return n
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	tracked := len(s.sessions)
	s.mu.RUnlock()

	stats := map[string]any{
		"started":  started,
		"sessions": tracked,
	}
	if started {
		stats["activeSessions"] = s.ActiveSessions()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["categories"] = s.corpus.Categories(ctx)
	}
	return stats
}

func (s *Service) observe(ctx context.Context, ev session.Event) {
	switch ev.Kind {
	case session.EventCompleted:
		if ev.Result != nil {
			s.finalize(ctx, *ev.Result)
		}
	case session.EventAborted:
		metrics.RecordSessionAborted()
	}
	s.touch(ev.SessionID)
	s.updateActive()
}

// finalize adds the rated item to the corpus and queues its durable write.
func (s *Service) finalize(ctx context.Context, r session.Result) {
	metrics.RecordSessionCompleted(string(r.StopReason), r.FinalRating)

	it := r.Item()
	if err := s.corpus.Put(ctx, it); err != nil {
		metrics.RecordErrorByComponent("service", "final_put")
		s.logger.Error(ctx, "final rating not added to corpus",
			logger.String("itemID", it.ID), logger.Error(err))
		return
	}
	if err := s.sink.SaveFinal(ctx, writeFor(it)); err != nil {
		s.logger.Warn(ctx, "final rating not persisted",
			logger.String("itemID", it.ID), logger.Error(err))
	}
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) track(sess *session.Session) {
	s.mu.Lock()
	s.sessions[sess.ID()] = &tracked{sess: sess, touched: s.now()}
	s.mu.Unlock()
}

func (s *Service) touch(id string) {
	s.mu.Lock()
	if t, ok := s.sessions[id]; ok {
		t.touched = s.now()
	}
	s.mu.Unlock()
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.updateActive()
}

func (s *Service) lookup(id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	t, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	t.touched = s.now()
	return t.sess, nil
}

func (s *Service) updateActive() {
	metrics.UpdateActiveSessions(s.ActiveSessions())
}

func writeFor(it model.RatedItem) model.RatingWrite {
	return model.RatingWrite{
		Category:          it.Category,
		ItemID:            it.ID,
		Rating:            it.Rating,
		ComparisonsPlayed: it.ComparisonsPlayed,
		StandardError:     it.StandardError,
	}
}

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, model.ErrInvalidSessionInput) ||
		errors.Is(err, model.ErrOutcomeRejected) ||
		errors.Is(err, model.ErrInvalidRatingInput) ||
		errors.Is(err, ErrSessionNotFound)
}
