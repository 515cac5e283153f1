package manager

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var errLoopStopped = errors.New("session loop stopped")

// eventLoop runs the tasks of one session one at a time, in posting order.
// Posting from inside a task queues behind everything already pending, which
// is how the policy yields to other pending work.
type eventLoop struct {
	ctx   context.Context
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
}

func newEventLoop(ctx context.Context) *eventLoop {
	return &eventLoop{
		ctx:  ctx,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// post queues task. Tasks posted after the loop stops are dropped.
func (l *eventLoop) post(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// call runs task on the loop and waits for it to finish
func (l *eventLoop) call(task func()) error {
	finished := make(chan struct{})
	l.post(func() {
		defer close(finished)
		task()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return errLoopStopped
	}
}

// sync waits until everything posted before it has run
func (l *eventLoop) sync() error {
	return l.call(func() {})
}

func (l *eventLoop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// run drains the queue until the loop's context ends
func (l *eventLoop) run() {
	defer close(l.done)

	for {
		for {
			if l.ctx.Err() != nil {
				return
			}
			task, ok := l.next()
			if !ok {
				break
			}
			l.runTask(task)
		}

		select {
		case <-l.ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *eventLoop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Session task panicked: %v", r)
		}
	}()
	task()
}
