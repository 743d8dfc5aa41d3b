package engine

import (
	"errors"
	"fmt"
	"sync"

	"RPGMixer/logger"
)

// ErrLoopStopped is returned when work is posted to a stopped loop.
var ErrLoopStopped = errors.New("engine loop stopped")

// Loop runs posted closures one at a time on a single goroutine. The store and
// the engine are only ever touched from inside it.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop with a task queue of the given depth.
func NewLoop(buffer int) *Loop {
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until Stop is called.
func (l *Loop) Run() {
	for {
		select {
		case fn := <-l.tasks:
			l.call(fn)
		case <-l.done:
			return
		}
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("engine task panicked", logger.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Post queues fn and returns immediately. It reports false once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Stop ends Run. Queued tasks are dropped.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}
