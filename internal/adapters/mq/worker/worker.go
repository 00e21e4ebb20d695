// Package worker drains re-analysis triggers and executes analysis runs.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 1
	poolShutdownTimeout = 30 * time.Second
)

// Trigger abstracts what workers read off the queue.
type Trigger = model.Trigger

// Analyzer executes one analysis run for a trigger.
type Analyzer interface {
	Execute(ctx context.Context, t Trigger) error
}

// Queue defines how workers receive triggers.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Trigger
}

// Worker executes runs for the triggers it receives.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker after its current run.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over a trigger queue.
type InMemoryWorker struct {
	queue    Queue
	analyzer Analyzer
	name     string

	processed atomic.Int64
	failed    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, analyzer Analyzer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		analyzer: analyzer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.GetOrDiscard().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Processed is the number of triggers this worker has executed.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed is the number of executed triggers that returned an error.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	triggers := w.queue.Dequeue(ctx)
	for {
		// A shutdown signal wins over triggers that are still queued.
		select {
		case <-w.shutdown:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-triggers:
			if !ok {
				return
			}
			if err := w.process(ctx, t); err != nil {
				w.logger.Error(ctx, "analysis run failed",
					logger.String("trigger_id", t.ID),
					logger.String("reason", t.Reason),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
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

func (w *InMemoryWorker) process(ctx context.Context, t Trigger) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.processed.Add(1)
	if err := w.analyzer.Execute(ctx, t); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "run_failed")
		metrics.RecordErrorByType("run_failed", "high")
		return fmt.Errorf("execute trigger %s: %w", t.ID, err)
	}

	w.logger.Debug(ctx, "trigger executed",
		logger.String("trigger_id", t.ID),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdownOnce sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, analyzer Analyzer) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.GetOrDiscard().Named("worker-pool"),
	}

	for i := range workerCount {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			analyzer,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed is the number of triggers executed by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed is the number of failed runs across all workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to run every trigger
// still queued. When ctx or the pool timeout expires first, workers are
// signalled to stop after their current run.
func (p *Pool) Shutdown(ctx context.Context) error {
	closer, ok := p.queue.(interface{ Close() error })
	if !ok {
		// Without a closable queue the workers cannot see the end of it.
		p.signal()
	} else if err := closer.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
		p.signal()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "queue drain timed out", logger.Int("worker_id", i))
			p.signal()
			return fmt.Errorf("drain queue: %w", shutdownCtx.Err())
		}
	}
	return nil
}

func (p *Pool) signal() {
	p.shutdownOnce.Do(func() {
		for _, w := range p.workers {
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	})
}
