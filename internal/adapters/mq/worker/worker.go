// Package worker runs mint jobs against the mint gateway.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/ecoledger/internal/adapters/mint"
	"github.com/okian/ecoledger/internal/adapters/mq/queue"
	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes mint jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	gateway mint.Gateway
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, gateway mint.Gateway, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		gateway:  gateway,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("mint-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run implements Worker.Run.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown implements Worker.Shutdown.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job and always replies.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) { //nolint:gocritic // jobs travel by value through the channel
	metrics.RecordQueueDequeue()
	kind := job.Request.Kind.String()
	out := mint.Outcome{JobID: job.ID, Index: job.Index, Kind: job.Request.Kind}

	callCtx := ctx
	if !job.Deadline.IsZero() {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithDeadline(ctx, job.Deadline)
		defer cancel()
	}

	if err := callCtx.Err(); err != nil {
		out.Err = err
	} else {
		metrics.IncWorkerBusy()
		metrics.RecordMintAttempt(kind)
		start := time.Now()
		out.TxID, out.Err = w.gateway.Mint(callCtx, job.Request)
		metrics.RecordMintLatency(float64(time.Since(start).Milliseconds()))
		metrics.DecWorkerBusy()
	}

	if out.Err != nil {
		reason := failureReason(out.Err)
		metrics.RecordMintFailure(kind, reason)
		metrics.RecordErrorByComponent("mint", reason)
		w.logger.Warn(ctx, "mint failed",
			logger.String("job_id", job.ID),
			logger.String("kind", kind),
			logger.String("reason", reason),
			logger.Error(out.Err),
		)
	}

	select {
	case job.Reply <- out:
	default:
		w.logger.Warn(ctx, "mint outcome dropped", logger.String("job_id", job.ID))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, mint.ErrMintDisabled):
		return "disabled"
	case errors.Is(err, mint.ErrMintRejected):
		return "rejected"
	default:
		return "error"
	}
}

// Pool manages multiple workers reading the same queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool; workerCount < 1 uses runtime.NumCPU().
func NewPool(workerCount int, q Queue, gateway mint.Gateway) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("mint-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, gateway, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes the queue, lets workers drain it, and forces them to stop
// once ctx (or the pool timeout) expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("mint pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
