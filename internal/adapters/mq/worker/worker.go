// Package worker drains the enrichment queue in the background.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/versus/internal/adapters/mq/queue"
	"github.com/okian/versus/internal/domain/dedupe"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 2
	defaultJobTimeout   = 10 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Enricher looks up descriptive attributes for a profile. A profile the
// provider knows nothing about yields empty attributes and a nil error.
type Enricher interface {
	Lookup(ctx context.Context, job Job) (model.Attributes, error)
}

// Updater writes attributes back to storage.
type Updater interface {
	Enrich(ctx context.Context, id string, attrs model.Attributes) (model.Profile, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until its queue closes or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	enricher Enricher
	updater  Updater
	deduper  dedupe.Deduper
	name     string
	timeout  time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, enricher Enricher, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		enricher: enricher,
		updater:  updater,
		name:     "worker",
		timeout:  defaultJobTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
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
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "enrichment failed",
					logger.String("profile_id", job.ProfileID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the loop and waits for the job in progress.
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

func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordEnrichmentLatency(float64(time.Since(start).Milliseconds()))
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	attrs, err := w.enricher.Lookup(jobCtx, job)
	if err != nil {
		w.release(ctx, job)
		metrics.RecordEnrichment("lookup_error")
		metrics.RecordErrorByComponent("worker", "lookup_error")
		return fmt.Errorf("lookup %s: %w", job.ProfileID, err)
	}
	if _, err := w.updater.Enrich(jobCtx, job.ProfileID, attrs); err != nil {
		w.release(ctx, job)
		metrics.RecordEnrichment("store_error")
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store enrichment %s: %w", job.ProfileID, err)
	}

	if attrs == (model.Attributes{}) {
		metrics.RecordEnrichment("empty")
	} else {
		metrics.RecordEnrichment("ok")
	}
	w.logger.Debug(ctx, "profile enriched", logger.String("profile_id", job.ProfileID))
	return nil
}

// release lets a failed job be scheduled again.
func (w *InMemoryWorker) release(ctx context.Context, job Job) {
	if w.deduper != nil {
		w.deduper.Unrecord(ctx, job.DedupeKey())
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. Options apply to every worker.
func NewPool(workerCount int, q Queue, enricher Enricher, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, enricher, updater, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue if it can be closed and lets the workers drain
// it. Workers still busy when the timeout expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		select {
		case <-w.done:
			continue
		case <-shutdownCtx.Done():
		}
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
