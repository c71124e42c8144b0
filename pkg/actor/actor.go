// Package actor provides a single-threaded task loop and futures whose
// completion callbacks are delivered back onto that loop.
package actor

import (
	"context"
	"sync"

	zerrors "github.com/yevgenykuz/zeebe/pkg/errors"
)

const defaultQueueSize = 256

// Scheduler runs tasks. An Actor is a Scheduler that runs all tasks on one goroutine.
type Scheduler interface {
	Run(task func()) error
}

// Actor executes submitted tasks one at a time, in submission order, on a
// dedicated goroutine. State owned by an actor needs no locks as long as it is
// only touched from tasks.
type Actor struct {
	name  string
	tasks chan func()

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an actor. Start must be called before tasks are executed.
func New(name string) *Actor {
	return &Actor{
		name:   name,
		tasks:  make(chan func(), defaultQueueSize),
		stopCh: make(chan struct{}),
	}
}

// Name returns the actor name.
func (a *Actor) Name() string {
	return a.name
}

// Start begins the task loop.
func (a *Actor) Start() {
	a.wg.Add(1)
	go a.loop()
}

// Stop drains no further tasks and waits for the loop to exit.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
	a.wg.Wait()
}

// Run enqueues a task. It blocks while the queue is full and fails once the
// actor is stopped.
func (a *Actor) Run(task func()) error {
	select {
	case <-a.stopCh:
		return zerrors.ErrClosed
	default:
	}

	select {
	case a.tasks <- task:
		return nil
	case <-a.stopCh:
		return zerrors.ErrClosed
	}
}

func (a *Actor) loop() {
	defer a.wg.Done()

	for {
		select {
		case task := <-a.tasks:
			task()
		case <-a.stopCh:
			return
		}
	}
}

// Call runs fn on the actor and waits for its result.
func Call[T any](ctx context.Context, a *Actor, fn func() (T, error)) (T, error) {
	f := NewFuture[T]()
	if err := a.Run(func() {
		v, err := fn()
		if err != nil {
			f.Fail(err)
			return
		}
		f.Complete(v)
	}); err != nil {
		var zero T
		return zero, err
	}
	return f.Await(ctx)
}
