// Package worker drains the durable write queue into a rating store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/flickrank/internal/adapters/mq/queue"
	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/pkg/logger"
	"github.com/okian/flickrank/pkg/metrics"
)

const (
	defaultSaveTimeout   = 5 * time.Second
	defaultRetries       = 2
	defaultRetryDelay    = 50 * time.Millisecond
	writerShutdownPeriod = 30 * time.Second
)

// Saver persists one rating write durably.
type Saver interface {
	SaveRating(ctx context.Context, w model.RatingWrite) error
}

// Queue defines how the writer receives writes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Write
}

// Writer is the single consumer of the write queue. Writes are applied in
// the order they were enqueued, so per-item order is preserved.
type Writer struct {
	queue      Queue
	saver      Saver
	name       string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWriter creates a writer draining q into s.
func NewWriter(q Queue, s Saver, opts ...Option) *Writer {
	w := &Writer{
		queue:      q,
		saver:      s,
		name:       "writer",
		timeout:    defaultSaveTimeout,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes writes until the queue closes, ctx is canceled or Shutdown
// is called. Once the queue is closed, buffered writes are still applied.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	writes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case rw, ok := <-writes:
			if !ok {
				return
			}
			if err := w.apply(ctx, rw); err != nil {
				w.logger.Error(ctx, "durable write failed",
					logger.String("category", rw.Category),
					logger.String("itemID", rw.ItemID),
					logger.String("kind", string(rw.Kind)),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *Writer) Done() <-chan struct{} { return w.done }

// Shutdown stops the writer and waits for Run to return.
func (w *Writer) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Drain waits for Run to finish after the queue has been closed.
func (w *Writer) Drain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writerShutdownPeriod)
	defer cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %w", ctx.Err())
	}
}

func (w *Writer) apply(ctx context.Context, rw model.RatingWrite) error {
	start := time.Now()
	defer func() {
		metrics.RecordWriterLatency(float64(time.Since(start).Milliseconds()))
	}()

	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(w.retryDelay * time.Duration(attempt)):
			}
		}
		saveCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err = w.saver.SaveRating(saveCtx, rw)
		cancel()
		if err == nil {
			return nil
		}
	}

	metrics.RecordWriterError()
	metrics.RecordErrorByComponent("writer", "save_error")
	return fmt.Errorf("save %s/%s: %w: %w", rw.Category, rw.ItemID, model.ErrPersistenceFailure, err)
}

// Enqueuer accepts writes for asynchronous persistence.
type Enqueuer interface {
	Enqueue(ctx context.Context, w queue.Write) error
}

// Sink hands rating writes to the write queue. It satisfies the session
// persister contract.
type Sink struct {
	queue Enqueuer
}

// NewSink creates a sink over q.
func NewSink(q Enqueuer) *Sink { return &Sink{queue: q} }

// UpdateOpponentRating enqueues an opponent write.
func (s *Sink) UpdateOpponentRating(ctx context.Context, w model.RatingWrite) error {
	w.Kind = model.WriteOpponent
	return s.enqueue(ctx, w)
}

// SaveFinal enqueues the final rating of a completed session.
func (s *Sink) SaveFinal(ctx context.Context, w model.RatingWrite) error {
	w.Kind = model.WriteFinal
	return s.enqueue(ctx, w)
}

// SaveSeed enqueues an imported rating.
func (s *Sink) SaveSeed(ctx context.Context, w model.RatingWrite) error {
	w.Kind = model.WriteSeed
	return s.enqueue(ctx, w)
}

func (s *Sink) enqueue(ctx context.Context, w model.RatingWrite) error {
	if err := s.queue.Enqueue(ctx, w); err != nil {
		metrics.RecordPersistenceFailure()
		return fmt.Errorf("enqueue %s/%s: %w: %w", w.Category, w.ItemID, model.ErrPersistenceFailure, err)
	}
	return nil
}
