package engine

import (
	"sync/atomic"
	"time"
)

// Timer cancels a scheduled callback. Stop is idempotent.
type Timer interface {
	Stop()
}

// Scheduler runs callbacks later on the engine goroutine.
type Scheduler interface {
	// After runs fn once after d.
	After(d time.Duration, fn func()) Timer
	// Every runs fn every d until stopped.
	Every(d time.Duration, fn func()) Timer
}

// LoopScheduler posts timer expiries onto a Loop, so callbacks never race
// with intents.
type LoopScheduler struct {
	loop *Loop
}

// NewLoopScheduler creates a scheduler bound to loop.
func NewLoopScheduler(loop *Loop) *LoopScheduler {
	return &LoopScheduler{loop: loop}
}

type loopTimer struct {
	stopped atomic.Bool
	timer   *time.Timer
	quit    chan struct{}
}

func (t *loopTimer) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.quit != nil {
		close(t.quit)
	}
}

// After implements Scheduler.
func (s *LoopScheduler) After(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		s.loop.Post(func() {
			// a Stop that raced the expiry still wins
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Every implements Scheduler. A tick is skipped while the previous one is
// still queued, so a busy loop never builds a backlog of frames.
func (s *LoopScheduler) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{quit: make(chan struct{})}
	var queued atomic.Bool
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if queued.Swap(true) {
					continue
				}
				s.loop.Post(func() {
					queued.Store(false)
					if !t.stopped.Load() {
						fn()
					}
				})
			case <-t.quit:
				return
			}
		}
	}()
	return t
}
