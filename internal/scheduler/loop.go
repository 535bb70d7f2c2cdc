// Package scheduler runs a session's cooperative task loop. Every piece of
// session state is touched only from the loop goroutine; other goroutines
// hand work in with Post or Do.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrStopped is returned for work submitted after the loop has stopped.
var ErrStopped = errors.New("scheduler stopped")

// Task is a unit of work run on the loop goroutine.
type Task func()

// Poster queues a task for the next frame tick.
type Poster interface {
	Post(task Task) bool
}

type call struct {
	fn   func()
	done chan struct{}
}

// Loop is a frame-ticked task queue. Tasks queued before a tick run in that
// tick; tasks posted while a tick runs wait for the next one.
type Loop struct {
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	queue   []Task
	stopped bool

	calls chan call
	done  chan struct{}
}

// New creates a loop that ticks every interval on clock.
func New(clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Loop {
	return &Loop{
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		calls:    make(chan call),
		done:     make(chan struct{}),
	}
}

// Post queues task for the next frame. It reports false once the loop has
// stopped.
func (l *Loop) Post(task Task) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.queue = append(l.queue, task)
	return true
}

// Pending returns the number of tasks waiting for a frame.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Tick runs one frame: every task queued before the call, in order. It
// returns the number of tasks run. Tick must only be called from the loop
// goroutine, or from tests that drive the loop by hand.
func (l *Loop) Tick() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, task := range batch {
		l.runTask(task)
	}
	l.metrics.FramesTotal.Inc()
	return len(batch)
}

// Flush ticks until the queue drains or maxFrames frames have run, and
// returns the number of frames run.
func (l *Loop) Flush(maxFrames int) int {
	frames := 0
	for frames < maxFrames && l.Pending() > 0 {
		l.Tick()
		frames++
	}
	return frames
}

func (l *Loop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", fmt.Sprint(r))
		}
	}()
	task()
}

// Run drives the loop until ctx is cancelled. Frames fire on the clock's
// ticker; Do calls run between frames as they arrive.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-l.calls:
			l.runTask(c.fn)
			close(c.done)
		case <-ticker.Chan():
			if l.Pending() > 0 {
				l.Tick()
			}
		}
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	close(l.done)
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case l.calls <- c:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return fmt.Errorf("submit task: %w", ctx.Err())
	}
	select {
	case <-c.done:
		return nil
	case <-l.done:
		return ErrStopped
	}
}
