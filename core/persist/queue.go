// Package persist implements playback.Persister. Calls never block the caller
// and never report back; failures are logged and dropped.
package persist

import (
	"context"
	"sync"
	"time"

	"RPGMixer/logger"
)

const (
	DefaultTimeout = 10 * time.Second
	queueSize      = 64
)

type job struct {
	op string
	fn func(ctx context.Context) error
}

// queue runs jobs one at a time in submission order, so a later save of the
// same record always lands after an earlier one.
type queue struct {
	timeout time.Duration
	jobs    chan job
	pending sync.WaitGroup
	once    sync.Once
	closed  chan struct{}

	// mu orders submit against Close, so no Add happens once Close has started waiting.
	mu       sync.Mutex
	shutdown bool
}

func newQueue(timeout time.Duration) *queue {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	q := &queue{
		timeout: timeout,
		jobs:    make(chan job, queueSize),
		closed:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) run() {
	for {
		select {
		case j := <-q.jobs:
			q.exec(j)
		case <-q.closed:
			return
		}
	}
}

func (q *queue) exec(j job) {
	defer q.pending.Done()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := j.fn(ctx); err != nil {
		logger.Warn("persistence call failed", logger.String("op", j.op), logger.ErrorField(err))
		return
	}
	logger.Debug("persisted", logger.String("op", j.op))
}

func (q *queue) submit(op string, fn func(ctx context.Context) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown {
		logger.Warn("persistence closed, dropping call", logger.String("op", op))
		return
	}
	q.pending.Add(1)
	select {
	case q.jobs <- job{op: op, fn: fn}:
	default:
		q.pending.Done()
		logger.Warn("persistence queue full, dropping call", logger.String("op", op))
	}
}

// Flush blocks until every submitted call has finished.
func (q *queue) Flush() {
	q.pending.Wait()
}

// Close flushes outstanding calls and stops the worker. Calls submitted after
// Close are dropped.
func (q *queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.shutdown = true
		q.mu.Unlock()
		q.Flush()
		close(q.closed)
	})
}
