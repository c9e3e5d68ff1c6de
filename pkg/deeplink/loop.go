package deeplink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Loop errors.
var (
	ErrLoopClosed    = errors.New("deeplink: loop closed")
	ErrLoopQueueFull = errors.New("deeplink: loop queue full")
)

// DefaultQueueSize is the dispatch queue capacity used when none is given.
const DefaultQueueSize = 256

// Loop runs functions one at a time, each to completion, on the goroutine
// that calls Run. Hosts deliver URL changes and user edits through it so
// that inflow's compare-then-assign and outflow's compare-then-navigate
// never interleave.
type Loop struct {
	dispatchCh chan func()
	done       chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewLoop creates a loop with the given queue capacity.
func NewLoop(queueSize int, logger *slog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		dispatchCh: make(chan func(), queueSize),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Dispatch queues fn to run on the loop. It is safe to call from any
// goroutine. Functions queued after Close are discarded.
func (l *Loop) Dispatch(fn func()) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	select {
	case l.dispatchCh <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	default:
		l.logger.Warn("dispatch queue full, discarding callback")
		return ErrLoopQueueFull
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Dispatch(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued functions until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.dispatchCh:
			l.execute(fn)
		case <-l.done:
			return nil
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		}
	}
}

// execute runs fn, recovering panics so one bad handler cannot stop the loop.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatched function panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Close stops the loop. Pending functions are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

// Done returns a channel that's closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
