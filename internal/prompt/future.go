package prompt

import (
	"context"
	"sync"

	"audiojoin-manager/internal/models"
)

// Outcome is how a prompt was answered
type Outcome struct {
	Choice models.PromptChoice `json:"choice"`
}

// Future is the deferred outcome of an open prompt. It completes once.
type Future struct {
	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete stores the outcome and reports whether this call completed the future
func (f *Future) complete(outcome Outcome) bool {
	completed := false
	f.once.Do(func() {
		f.outcome = outcome
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed once the prompt is answered
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Outcome returns the answer. Only meaningful after Done is closed.
func (f *Future) Outcome() Outcome {
	<-f.done
	return f.outcome
}

// Wait blocks until the prompt is answered or ctx ends
func (f *Future) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Then runs fn with the outcome once the prompt is answered. fn is not called
// if ctx ends first.
func (f *Future) Then(ctx context.Context, fn func(Outcome)) {
	go func() {
		outcome, err := f.Wait(ctx)
		if err != nil {
			return
		}
		fn(outcome)
	}()
}
