package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/fairway/internal/adapters/mq/queue"
	worker "github.com/okian/fairway/internal/adapters/mq/worker"
	model "github.com/okian/fairway/internal/domain/model"
	logging "github.com/okian/fairway/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan queue.Submission
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.Submission, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Submission {
	return mq.ch
}

func (mq *mockQueue) Close() error {
	close(mq.ch)
	return nil
}

type mockIngestor struct {
	mu       sync.Mutex
	ingested []string
	failures map[string]error
}

func newMockIngestor() *mockIngestor {
	return &mockIngestor{failures: make(map[string]error)}
}

func (m *mockIngestor) Ingest(_ context.Context, s queue.Submission) error { //nolint:gocritic // hugeParam: mirrors the interface
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[s.SubmissionID]; ok {
		return err
	}
	m.ingested = append(m.ingested, s.SubmissionID)
	return nil
}

func (m *mockIngestor) fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = err
}

func (m *mockIngestor) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ingested...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		ing := newMockIngestor()
		w := worker.NewInMemoryWorker(q, ing, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a submission arrives", func() {
			q.ch <- model.ReviewSubmission{SubmissionID: "s1", ClubID: "club-1", Rating: 4.5}

			convey.Convey("Then it is ingested", func() {
				convey.So(waitFor(func() bool { return len(ing.snapshot()) == 1 }), convey.ShouldBeTrue)
				convey.So(ing.snapshot()[0], convey.ShouldEqual, "s1")
			})
		})

		convey.Convey("When ingestion fails for one submission", func() {
			ing.fail("bad", errors.New("store unavailable"))
			q.ch <- model.ReviewSubmission{SubmissionID: "bad"}
			q.ch <- model.ReviewSubmission{SubmissionID: "good"}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return len(ing.snapshot()) == 1 }), convey.ShouldBeTrue)
				convey.So(ing.snapshot(), convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When the worker is shut down", func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()

			convey.Convey("Then it stops without error", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		ing := newMockIngestor()
		pool := worker.NewPool(4, q, ing)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When submissions are enqueued and the pool shuts down", func() {
			for _, id := range []string{"a", "b", "c", "d", "e"} {
				convey.So(q.Enqueue(ctx, model.ReviewSubmission{SubmissionID: id}), convey.ShouldBeTrue)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued submission is drained", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ing.snapshot(), convey.ShouldHaveLength, 5)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
