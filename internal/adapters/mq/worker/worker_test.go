package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/ecoledger/internal/adapters/mint"
	queue "github.com/okian/ecoledger/internal/adapters/mq/queue"
	worker "github.com/okian/ecoledger/internal/adapters/mq/worker"
	logging "github.com/okian/ecoledger/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockGateway struct {
	mu    sync.Mutex
	calls []mint.Request
	txID  string
	err   error
	delay time.Duration
}

func (g *mockGateway) Mint(ctx context.Context, req mint.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	delay, txID, err := g.delay, g.txID, g.err
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return txID, err
}

func (g *mockGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func job(id string, index int, reply chan mint.Outcome, deadline time.Time) queue.Job {
	return queue.Job{
		ID:       id,
		Index:    index,
		Request:  mint.Request{Kind: mint.KindBadge, Method: mint.MethodMintBadge},
		Deadline: deadline,
		Reply:    reply,
	}
}

func receive(reply <-chan mint.Outcome) (mint.Outcome, bool) {
	select {
	case out := <-reply:
		return out, true
	case <-time.After(2 * time.Second):
		return mint.Outcome{}, false
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := newMockQueue()
		gw := &mockGateway{txID: "0xabc"}
		w := worker.NewInMemoryWorker(q, gw, worker.WithName("test"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job succeeds", func() {
			reply := make(chan mint.Outcome, 1)
			q.jobs <- job("j1", 3, reply, time.Now().Add(time.Second))

			convey.Convey("Then the outcome carries the tx id and index", func() {
				out, ok := receive(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(out.Err, convey.ShouldBeNil)
				convey.So(out.TxID, convey.ShouldEqual, "0xabc")
				convey.So(out.Index, convey.ShouldEqual, 3)
				convey.So(out.JobID, convey.ShouldEqual, "j1")
				convey.So(out.Kind, convey.ShouldEqual, mint.KindBadge)
			})
		})

		convey.Convey("When the gateway rejects the job", func() {
			gw.mu.Lock()
			gw.err = mint.ErrMintRejected
			gw.mu.Unlock()
			reply := make(chan mint.Outcome, 1)
			q.jobs <- job("j2", 0, reply, time.Time{})

			convey.Convey("Then the error is reported", func() {
				out, ok := receive(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(errors.Is(out.Err, mint.ErrMintRejected), convey.ShouldBeTrue)
				convey.So(out.TxID, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the job deadline already passed", func() {
			reply := make(chan mint.Outcome, 1)
			q.jobs <- job("j3", 0, reply, time.Now().Add(-time.Second))

			convey.Convey("Then the gateway is skipped", func() {
				out, ok := receive(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(errors.Is(out.Err, context.DeadlineExceeded), convey.ShouldBeTrue)
				convey.So(gw.callCount(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the gateway outlives the deadline", func() {
			gw.mu.Lock()
			gw.delay = time.Second
			gw.mu.Unlock()
			reply := make(chan mint.Outcome, 1)
			q.jobs <- job("j4", 0, reply, time.Now().Add(20*time.Millisecond))

			convey.Convey("Then the call is cut off", func() {
				out, ok := receive(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(errors.Is(out.Err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When nobody listens for the outcome", func() {
			full := make(chan mint.Outcome)
			q.jobs <- job("j5", 0, full, time.Time{})
			reply := make(chan mint.Outcome, 1)
			q.jobs <- job("j6", 0, reply, time.Time{})

			convey.Convey("Then the worker keeps going", func() {
				out, ok := receive(reply)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(out.JobID, convey.ShouldEqual, "j6")
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops promptly", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		gw := &mockGateway{txID: "0xfeed"}
		p := worker.NewPool(4, q, gw)
		p.Start(context.Background())

		convey.Convey("When jobs are enqueued", func() {
			reply := make(chan mint.Outcome, 8)
			for i := 0; i < 8; i++ {
				err := q.Enqueue(context.Background(), job("p", i, reply, time.Now().Add(time.Second)))
				convey.So(err, convey.ShouldBeNil)
			}

			convey.Convey("Then every job is answered once", func() {
				seen := map[int]bool{}
				for i := 0; i < 8; i++ {
					out, ok := receive(reply)
					convey.So(ok, convey.ShouldBeTrue)
					seen[out.Index] = true
				}
				convey.So(len(seen), convey.ShouldEqual, 8)
				convey.So(p.Size(), convey.ShouldEqual, 4)

				sctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				convey.So(p.Shutdown(sctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the pool shuts down", func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(p.Shutdown(sctx), convey.ShouldBeNil)

			convey.Convey("Then the queue refuses new jobs", func() {
				err := q.Enqueue(context.Background(), job("late", 0, make(chan mint.Outcome, 1), time.Time{}))
				convey.So(errors.Is(err, queue.ErrClosed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the worker count is not positive", func() {
			p2 := worker.NewPool(0, queue.NewInMemoryQueue(), gw)

			convey.Convey("Then one worker per CPU is used", func() {
				convey.So(p2.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}
