// Package jobs runs fire-and-forget follow-up work (point grants, badge
// checks) on a small pool of workers.
//
// Callers never observe a job's outcome. Failures are logged and counted,
// and [Queue.Wait] lets tests and shutdown drain outstanding work.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/metrics"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("job queue closed")

// Task is a unit of background work.
type Task struct {
	// Name labels the task in logs and metrics.
	Name string
	Run  func(ctx context.Context) error
}

type Config struct {
	Workers   int
	QueueSize int
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

// Queue executes submitted tasks concurrently. Tasks run with the queue's
// own context so that they outlive the request that scheduled them.
type Queue struct {
	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	logger  logger.Logger
	metrics *metrics.Metrics

	pending sync.WaitGroup
	workers sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:   make(chan Task, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	for i := 0; i < cfg.Workers; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues t. It blocks while the queue is full.
func (q *Queue) Submit(t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.pending.Add(1)
	q.tasks <- t
	return nil
}

// Wait blocks until every submitted task has finished.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Close stops accepting work, lets queued tasks finish and stops the
// workers. Cancelling ctx aborts running tasks instead of waiting for them.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.workers.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	defer q.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			q.fail(t, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := t.Run(q.ctx); err != nil {
		q.fail(t, err)
	}
}

func (q *Queue) fail(t Task, err error) {
	q.metrics.JobFailed(t.Name)
	q.logger.Warn("background job failed", "job", t.Name, "error", err)
}
