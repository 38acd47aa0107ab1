// Package session drives one rating flow for a new item as an explicit
// state machine:
//
//	AwaitingSentiment -> RunningRound(k) -> Complete | Aborted
//
// Start picks the round 1 opponent from the sentiment's percentile slice.
// Each Submit commits one round, then either stops (converged, exhausted or
// no opponent left) or presents the next opponent from the follow-up policy.
//
// Sessions share nothing but the Corpus. Opponent ratings are committed
// through Corpus.Update, which serializes writers per item, so two sessions
// that pick the same opponent never lose an update.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/flickrank/internal/domain/confidence"
	"github.com/okian/flickrank/internal/domain/elo"
	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/internal/domain/scale"
	"github.com/okian/flickrank/internal/domain/selector"
	"github.com/okian/flickrank/pkg/logger"
)

// Corpus is the shared set of rated items.
type Corpus interface {
	// Items returns the rated items of a category. Writes made through
	// Update are visible to the next call.
	Items(ctx context.Context, category string) ([]model.RatedItem, error)
	// Update applies fn to the current value of one item as a single
	// serialized read-modify-write. An error from fn leaves the item unchanged.
	Update(ctx context.Context, category, id string, fn func(model.RatedItem) (model.RatedItem, error)) (model.RatedItem, error)
}

// Persister receives committed opponent ratings. Failures are logged only.
type Persister interface {
	UpdateOpponentRating(ctx context.Context, w model.RatingWrite) error
}

type nopPersister struct{}

func (nopPersister) UpdateOpponentRating(context.Context, model.RatingWrite) error { return nil }

// Session is one rating flow. It is safe for concurrent use; calls are
// serialized by an internal mutex.
type Session struct {
	mu sync.Mutex

	id        string
	p         model.Params
	corpus    Corpus
	persister Persister
	log       logger.Logger
	listener  Listener
	rng       *rand.Rand

	elo  *elo.Engine
	conf *confidence.Estimator
	sel  *selector.Selector

	item      model.CandidateItem
	state     State
	round     int
	estimate  *float64
	used      selector.Exclusions
	usedOrder []string
	opponent  *model.RatedItem
	history   []model.RoundRecord
	wins      int
	losses    int
	ties      int
	stats     model.RatingStats
	result    *Result
	failures  int
}

// New creates a session for candidate in AwaitingSentiment.
func New(p model.Params, corpus Corpus, candidate model.CandidateItem, opts ...Option) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if corpus == nil {
		return nil, fmt.Errorf("nil corpus: %w", model.ErrInvalidSessionInput)
	}
	if candidate.ID == "" {
		return nil, fmt.Errorf("missing item id: %w", model.ErrInvalidSessionInput)
	}

	s := &Session{
		id:        uuid.NewString(),
		p:         p.Clone(),
		corpus:    corpus,
		persister: nopPersister{},
		log:       logger.Nop(),
		state:     AwaitingSentiment,
		used:      selector.Exclusions{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // selection is not security sensitive
	}

	s.item = candidate
	s.item.ProvisionalRating = nil
	s.elo = elo.New(s.p)
	s.conf = confidence.New(s.p)
	s.sel = selector.New(s.p, s.rng)
	s.stats = model.RatingStats{StandardError: s.p.InitialUncertainty}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Start declares the sentiment for the new item and presents round 1.
func (s *Session) Start(ctx context.Context, sentiment model.Sentiment) (Event, error) {
	s.mu.Lock()
	ev, err := s.start(ctx, sentiment)
	s.mu.Unlock()
	s.notify(ctx, ev)
	return ev, err
}

func (s *Session) start(ctx context.Context, sentiment model.Sentiment) (Event, error) {
	if s.state != AwaitingSentiment {
		return Event{}, fmt.Errorf("session is %s: %w", s.state, model.ErrInvalidSessionInput)
	}
	if sentiment.Tier() < 0 {
		return Event{}, fmt.Errorf("sentiment %q: %w", sentiment, model.ErrInvalidSessionInput)
	}

	items, err := s.corpus.Items(ctx, s.item.Category)
	if err != nil {
		return Event{}, fmt.Errorf("load corpus %q: %w", s.item.Category, err)
	}
	rated := 0
	for _, it := range items {
		if it.ID != s.item.ID && scale.Valid(s.p, it.Rating) {
			rated++
		}
	}
	if rated < s.p.MinCorpusSize {
		return Event{}, fmt.Errorf("category %q has %d rated items, need %d: %w",
			s.item.Category, rated, s.p.MinCorpusSize, model.ErrCorpusTooSmall)
	}

	s.item.Sentiment = sentiment
	s.used.Add(s.item.ID)
	s.state = RunningRound
	s.round = 1

	opp, ok := s.sel.Percentile(items, sentiment, s.used)
	if !ok {
		return s.complete(ctx, model.StopNoOpponent), nil
	}
	s.log.Info(ctx, "session started",
		logger.String("session_id", s.id),
		logger.String("item_id", s.item.ID),
		logger.String("sentiment", string(sentiment)),
		logger.Int("corpus_size", rated))
	return s.present(opp), nil
}

// Submit resolves the outstanding comparison of round. It must be called
// exactly once per presented round; any other call is rejected without
// changing state.
func (s *Session) Submit(ctx context.Context, round int, outcome model.Outcome) (Event, error) {
	s.mu.Lock()
	ev, err := s.submit(ctx, round, outcome)
	s.mu.Unlock()
	s.notify(ctx, ev)
	return ev, err
}

func (s *Session) submit(ctx context.Context, round int, outcome model.Outcome) (Event, error) {
	switch s.state {
	case RunningRound:
	case Aborted:
		return Event{}, fmt.Errorf("%w: %w", model.ErrOutcomeRejected, model.ErrSessionAborted)
	default:
		return Event{}, fmt.Errorf("session is %s: %w", s.state, model.ErrOutcomeRejected)
	}
	if round != s.round || s.opponent == nil {
		return Event{}, fmt.Errorf("outcome for round %d, current round is %d: %w", round, s.round, model.ErrOutcomeRejected)
	}
	switch outcome {
	case model.AWins, model.BWins, model.TooTough:
	default:
		return Event{}, fmt.Errorf("outcome %q: %w", outcome, model.ErrOutcomeRejected)
	}

	opp := *s.opponent
	var (
		pair      elo.Pair
		oppBefore float64
	)
	committed, err := s.corpus.Update(ctx, s.item.Category, opp.ID, func(cur model.RatedItem) (model.RatedItem, error) {
		var err error
		if s.estimate == nil {
			pair, err = s.elo.Place(cur.Rating, outcome)
		} else {
			pair, err = s.elo.Apply(
				elo.Participant{Rating: *s.estimate, Games: s.round - 1},
				elo.Participant{Rating: cur.Rating, Games: cur.ComparisonsPlayed},
				outcome,
			)
		}
		if err != nil {
			return cur, err
		}
		oppBefore = cur.Rating
		cur.Rating = pair.B
		cur.ComparisonsPlayed++
		return cur, nil
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidRatingInput) {
			s.log.Error(ctx, "invalid rating in round, aborting session",
				logger.String("session_id", s.id),
				logger.Int("round", round),
				logger.String("opponent_id", opp.ID),
				logger.Error(err))
			return s.abort(ctx), err
		}
		return Event{}, fmt.Errorf("commit round %d: %w", round, err)
	}

	s.record(round, opp.ID, outcome, pair.A, oppBefore, committed.Rating)
	s.persist(ctx, committed)

	stats, err := s.conf.Stats(*s.estimate, s.wins, s.losses, s.ties)
	if err != nil {
		return s.abort(ctx), err
	}
	s.stats = stats

	if stop, reason := s.conf.ShouldStop(round, stats.Interval.Width); stop {
		return s.complete(ctx, reason), nil
	}

	items, err := s.corpus.Items(ctx, s.item.Category)
	if err != nil {
		s.log.Warn(ctx, "corpus unavailable, stopping session",
			logger.String("session_id", s.id), logger.Error(err))
		return s.complete(ctx, model.StopNoOpponent), nil
	}
	next, ok := s.sel.FollowUp(items, *s.estimate, outcome, s.used)
	if !ok {
		return s.complete(ctx, model.StopNoOpponent), nil
	}
	s.round++
	return s.present(next), nil
}

// Abort abandons the session between rounds. Rounds already committed stay
// in the corpus. Aborting twice is a no-op; aborting a complete session is
// rejected.
func (s *Session) Abort(ctx context.Context) error {
	s.mu.Lock()
	var ev Event
	var err error
	switch s.state {
	case Aborted:
	case Complete:
		err = fmt.Errorf("session is complete: %w", model.ErrOutcomeRejected)
	default:
		ev = s.abort(ctx)
	}
	s.mu.Unlock()
	s.notify(ctx, ev)
	return err
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the final result once the session is complete.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return copyResult(*s.result), true
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                  s.id,
		Item:                s.item,
		State:               s.state,
		Round:               s.round,
		UsedOpponents:       append([]string(nil), s.usedOrder...),
		History:             append([]model.RoundRecord(nil), s.history...),
		Stats:               s.stats,
		PersistenceFailures: s.failures,
	}
	if s.estimate != nil {
		v := *s.estimate
		snap.Estimate = &v
	}
	if s.opponent != nil {
		o := *s.opponent
		snap.Opponent = &o
	}
	if s.result != nil {
		r := copyResult(*s.result)
		snap.Result = &r
	}
	return snap
}

func (s *Session) present(opp model.RatedItem) Event {
	s.opponent = &opp
	s.used.Add(opp.ID)
	s.usedOrder = append(s.usedOrder, opp.ID)
	o := opp
	return Event{
		Kind:      EventPresentComparison,
		SessionID: s.id,
		Round:     s.round,
		Item:      s.item,
		Opponent:  &o,
	}
}

func (s *Session) record(round int, oppID string, outcome model.Outcome, after, oppBefore, oppAfter float64) {
	var before *float64
	if s.estimate != nil {
		v := *s.estimate
		before = &v
	}
	s.history = append(s.history, model.RoundRecord{
		Round:                round,
		OpponentID:           oppID,
		Outcome:              outcome,
		RatingBefore:         before,
		RatingAfter:          after,
		OpponentRatingBefore: oppBefore,
		OpponentRatingAfter:  oppAfter,
	})
	switch outcome {
	case model.AWins:
		s.wins++
	case model.BWins:
		s.losses++
	default:
		s.ties++
	}
	est := after
	s.estimate = &est
	prov := after
	s.item.ProvisionalRating = &prov
	s.opponent = nil
}

func (s *Session) persist(ctx context.Context, it model.RatedItem) {
	w := model.RatingWrite{
		Kind:              model.WriteOpponent,
		Category:          s.item.Category,
		ItemID:            it.ID,
		Rating:            it.Rating,
		ComparisonsPlayed: it.ComparisonsPlayed,
		StandardError:     it.StandardError,
	}
	if err := s.persister.UpdateOpponentRating(ctx, w); err != nil {
		s.failures++
		s.log.Warn(ctx, "opponent rating not persisted",
			logger.String("session_id", s.id),
			logger.String("opponent_id", it.ID),
			logger.Float64("rating", it.Rating),
			logger.Error(fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)))
	}
}

func (s *Session) complete(ctx context.Context, reason model.StopReason) Event {
	rating, ok := s.p.Baselines.For(s.item.Sentiment)
	if !ok {
		rating = (s.p.MinRating + s.p.MaxRating) / 2
	}
	if s.estimate != nil {
		rating = *s.estimate
	}
	rating = scale.Bound(s.p, rating)
	s.stats.Rating = rating

	played := len(s.history)
	s.result = &Result{
		ItemID:       s.item.ID,
		Category:     s.item.Category,
		FinalRating:  rating,
		Stats:        s.stats,
		History:      append([]model.RoundRecord(nil), s.history...),
		StopReason:   reason,
		RoundsPlayed: played,
	}
	s.state = Complete
	s.opponent = nil

	s.log.Info(ctx, "session complete",
		logger.String("session_id", s.id),
		logger.String("item_id", s.item.ID),
		logger.Float64("rating", rating),
		logger.String("stop_reason", string(reason)),
		logger.Int("rounds", played))

	r := copyResult(*s.result)
	return Event{
		Kind:      EventCompleted,
		SessionID: s.id,
		Round:     s.round,
		Item:      s.item,
		Result:    &r,
	}
}

func (s *Session) abort(ctx context.Context) Event {
	s.state = Aborted
	s.opponent = nil
	s.log.Info(ctx, "session aborted",
		logger.String("session_id", s.id),
		logger.Int("round", s.round),
		logger.Int("committed_rounds", len(s.history)))
	return Event{Kind: EventAborted, SessionID: s.id, Round: s.round, Item: s.item}
}

func (s *Session) notify(ctx context.Context, ev Event) {
	if s.listener != nil && ev.Kind != "" {
		s.listener(ctx, ev)
	}
}

func copyResult(r Result) Result {
	r.History = append([]model.RoundRecord(nil), r.History...)
	return r
}
