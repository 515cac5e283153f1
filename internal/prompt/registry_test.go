package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiojoin-manager/internal/models"
)

func TestRegistry_OpenAndResolve(t *testing.T) {
	r := NewRegistry()

	var opened, resolved []string
	r.SetOpenCallback(func(p *Prompt) { opened = append(opened, p.ID) })
	r.SetResolveCallback(func(p *Prompt, outcome Outcome) { resolved = append(resolved, p.ID) })

	p := r.Open("session_1", models.PromptKindAudio)
	require.NotNil(t, p)
	assert.Contains(t, p.ID, "prompt_")
	assert.Equal(t, []string{p.ID}, opened)
	assert.Len(t, r.Pending("session_1"), 1)
	assert.Equal(t, 1, r.PendingCount())

	got, err := r.Resolve(p.ID, Outcome{Choice: models.PromptChoiceMicrophone})
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, []string{p.ID}, resolved)

	select {
	case <-p.Future.Done():
	default:
		t.Fatal("future should be completed")
	}
	assert.Equal(t, models.PromptChoiceMicrophone, p.Future.Outcome().Choice)

	snapshot := p.Snapshot()
	assert.Equal(t, models.PromptChoiceMicrophone, snapshot.Choice)
	assert.NotNil(t, snapshot.ResolvedAt)
	assert.Empty(t, r.Pending("session_1"))
}

func TestRegistry_ResolveOnce(t *testing.T) {
	r := NewRegistry()
	p := r.Open("session_1", models.PromptKindCamera)

	_, err := r.Resolve(p.ID, Outcome{Choice: models.PromptChoiceShared})
	require.NoError(t, err)

	_, err = r.Resolve(p.ID, Outcome{Choice: models.PromptChoiceDismissed})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, models.PromptChoiceShared, p.Future.Outcome().Choice)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("prompt_missing", Outcome{Choice: models.PromptChoiceDismissed})
	assert.ErrorIs(t, err, ErrPromptNotFound)

	p := r.Open("session_1", models.PromptKindAudio)
	_, err = r.Resolve(p.ID, Outcome{Choice: models.PromptChoiceShared})
	assert.ErrorIs(t, err, ErrInvalidChoice)
	assert.Len(t, r.Pending("session_1"), 1)
}

func TestRegistry_PendingIsPerSession(t *testing.T) {
	r := NewRegistry()
	r.Open("session_1", models.PromptKindAudio)
	r.Open("session_2", models.PromptKindAudio)
	r.Open("session_2", models.PromptKindCamera)

	assert.Len(t, r.Pending("session_1"), 1)
	assert.Len(t, r.Pending("session_2"), 2)

	r.Forget("session_2")
	assert.Empty(t, r.Pending("session_2"))
	assert.Equal(t, 1, r.PendingCount())
}

func TestFuture_WaitAndThen(t *testing.T) {
	f := newFuture()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan Outcome, 1)
	f.Then(context.Background(), func(o Outcome) { got <- o })

	assert.True(t, f.complete(Outcome{Choice: models.PromptChoiceListenOnly}))
	assert.False(t, f.complete(Outcome{Choice: models.PromptChoiceMicrophone}))

	select {
	case o := <-got:
		assert.Equal(t, models.PromptChoiceListenOnly, o.Choice)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Then callback")
	}
}

func TestFuture_ThenSkippedOnCancel(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())

	called := make(chan struct{}, 1)
	f.Then(ctx, func(Outcome) { called <- struct{}{} })
	cancel()

	// Give the waiter a chance to observe the cancellation first
	time.Sleep(20 * time.Millisecond)
	f.complete(Outcome{Choice: models.PromptChoiceDismissed})

	select {
	case <-called:
		t.Fatal("callback ran after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_ResolvedPromptsAreBounded(t *testing.T) {
	r := NewRegistry()

	var ids []string
	for i := 0; i < maxResolved+10; i++ {
		p := r.Open("session_1", models.PromptKindAudio)
		_, err := r.Resolve(p.ID, Outcome{Choice: models.PromptChoiceDismissed})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	r.mu.RLock()
	assert.Empty(t, r.prompts)
	assert.Len(t, r.resolved, maxResolved)
	r.mu.RUnlock()

	// Recent answers are still known, the oldest are gone
	last := ids[len(ids)-1]
	got, exists := r.Get(last)
	require.True(t, exists)
	assert.Equal(t, models.PromptChoiceDismissed, got.Snapshot().Choice)
	_, err := r.Resolve(last, Outcome{Choice: models.PromptChoiceMicrophone})
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	_, err = r.Resolve(ids[0], Outcome{Choice: models.PromptChoiceMicrophone})
	assert.ErrorIs(t, err, ErrPromptNotFound)

	r.Forget("session_1")
	_, exists = r.Get(last)
	assert.False(t, exists)
}
