package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/flickrank/internal/adapters/mq/queue"
	worker "github.com/okian/flickrank/internal/adapters/mq/worker"
	model "github.com/okian/flickrank/internal/domain/model"
	logging "github.com/okian/flickrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recordingSaver struct {
	mu     sync.Mutex
	writes []model.RatingWrite
	fails  map[string]int
	calls  map[string]int
}

func newRecordingSaver() *recordingSaver {
	return &recordingSaver{fails: map[string]int{}, calls: map[string]int{}}
}

func (s *recordingSaver) SaveRating(_ context.Context, w model.RatingWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[w.ItemID]++
	if s.fails[w.ItemID] > 0 {
		s.fails[w.ItemID]--
		return errors.New("store unavailable")
	}
	s.writes = append(s.writes, w)
	return nil
}

func (s *recordingSaver) snapshot() []model.RatingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.RatingWrite(nil), s.writes...)
}

func (s *recordingSaver) callsFor(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, queue.Write) error { return queue.ErrFull }

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWriter(t *testing.T) {
	convey.Convey("Given a writer draining a queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		saver := newRecordingSaver()
		w := worker.NewWriter(q, saver, worker.WithName("test-writer"), worker.WithRetries(2, time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		sink := worker.NewSink(q)

		convey.Convey("When opponent and final writes are enqueued", func() {
			for _, r := range []float64{5.1, 5.4, 5.0} {
				err := sink.UpdateOpponentRating(ctx, model.RatingWrite{Category: "movie", ItemID: "m1", Rating: r})
				convey.So(err, convey.ShouldBeNil)
			}
			err := sink.SaveFinal(ctx, model.RatingWrite{Category: "movie", ItemID: "new", Rating: 7.7})
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then they are saved in order with their kinds", func() {
				convey.So(waitFor(func() bool { return len(saver.snapshot()) == 4 }), convey.ShouldBeTrue)
				got := saver.snapshot()
				convey.So(got[0].Rating, convey.ShouldEqual, 5.1)
				convey.So(got[1].Rating, convey.ShouldEqual, 5.4)
				convey.So(got[2].Rating, convey.ShouldEqual, 5.0)
				convey.So(got[0].Kind, convey.ShouldEqual, model.WriteOpponent)
				convey.So(got[3].Kind, convey.ShouldEqual, model.WriteFinal)
			})
		})

		convey.Convey("When the store fails transiently", func() {
			saver.mu.Lock()
			saver.fails["flaky"] = 2
			saver.mu.Unlock()
			convey.So(sink.UpdateOpponentRating(ctx, model.RatingWrite{Category: "movie", ItemID: "flaky", Rating: 4}), convey.ShouldBeNil)

			convey.Convey("Then the write is retried until it lands", func() {
				convey.So(waitFor(func() bool { return len(saver.snapshot()) == 1 }), convey.ShouldBeTrue)
				convey.So(saver.callsFor("flaky"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the store keeps failing", func() {
			saver.mu.Lock()
			saver.fails["dead"] = 100
			saver.mu.Unlock()
			convey.So(sink.UpdateOpponentRating(ctx, model.RatingWrite{Category: "movie", ItemID: "dead", Rating: 4}), convey.ShouldBeNil)
			convey.So(sink.UpdateOpponentRating(ctx, model.RatingWrite{Category: "movie", ItemID: "next", Rating: 6}), convey.ShouldBeNil)

			convey.Convey("Then the writer gives up and moves on", func() {
				convey.So(waitFor(func() bool { return len(saver.snapshot()) == 1 }), convey.ShouldBeTrue)
				convey.So(saver.snapshot()[0].ItemID, convey.ShouldEqual, "next")
				convey.So(saver.callsFor("dead"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the queue is closed with writes buffered", func() {
			cancel()
			<-w.Done()

			q2 := queue.NewInMemoryQueue(queue.WithCapacity(8))
			saver2 := newRecordingSaver()
			w2 := worker.NewWriter(q2, saver2)
			for i := 0; i < 5; i++ {
				convey.So(q2.Enqueue(context.Background(), model.RatingWrite{Category: "tv", ItemID: "t", Rating: float64(i)}), convey.ShouldBeNil)
			}
			_ = q2.Close()
			go w2.Run(context.Background())

			convey.Convey("Then draining applies every buffered write", func() {
				convey.So(w2.Drain(context.Background()), convey.ShouldBeNil)
				convey.So(len(saver2.snapshot()), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When shutting down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then the writer stops and a second shutdown is harmless", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestSink(t *testing.T) {
	convey.Convey("Given a sink over a full queue", t, func() {
		sink := worker.NewSink(failingQueue{})

		convey.Convey("When a write is handed over", func() {
			err := sink.UpdateOpponentRating(context.Background(), model.RatingWrite{Category: "movie", ItemID: "m1", Rating: 5})

			convey.Convey("Then it reports a persistence failure wrapping the queue error", func() {
				convey.So(errors.Is(err, model.ErrPersistenceFailure), convey.ShouldBeTrue)
				convey.So(errors.Is(err, queue.ErrFull), convey.ShouldBeTrue)
			})
		})
	})
}
