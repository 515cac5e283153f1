package prompt

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"audiojoin-manager/internal/models"
)

// maxResolved is how many answered prompts are remembered for lookups and
// double-answer detection
const maxResolved = 256

var (
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrAlreadyResolved = errors.New("prompt already resolved")
	ErrInvalidChoice   = errors.New("invalid choice for prompt")
)

// Prompt is a modal mounted for a session
type Prompt struct {
	ID        string
	SessionID string
	Kind      models.PromptKind
	OpenedAt  time.Time
	Future    *Future

	mu         sync.Mutex
	resolvedAt *time.Time
	choice     models.PromptChoice
}

// Snapshot returns the prompt as a model
func (p *Prompt) Snapshot() models.Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := models.Prompt{
		ID:        p.ID,
		SessionID: p.SessionID,
		Kind:      p.Kind,
		OpenedAt:  p.OpenedAt,
		Choice:    p.choice,
	}
	if p.resolvedAt != nil {
		resolvedAt := *p.resolvedAt
		snapshot.ResolvedAt = &resolvedAt
	}
	return snapshot
}

var validChoices = map[models.PromptKind]map[models.PromptChoice]bool{
	models.PromptKindAudio: {
		models.PromptChoiceMicrophone: true,
		models.PromptChoiceListenOnly: true,
		models.PromptChoiceDismissed:  true,
	},
	models.PromptKindCamera: {
		models.PromptChoiceShared:    true,
		models.PromptChoiceDismissed: true,
		models.PromptChoiceSkipped:   true,
	},
}

// Registry mounts prompts and routes answers to them. Answered prompts move
// to a bounded history.
type Registry struct {
	mu            sync.RWMutex
	prompts       map[string]*Prompt
	resolved      map[string]*Prompt
	resolvedOrder []string

	// Callbacks for events
	onOpen    func(p *Prompt)
	onResolve func(p *Prompt, outcome Outcome)
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		prompts:  make(map[string]*Prompt),
		resolved: make(map[string]*Prompt),
	}
}

// SetOpenCallback sets the callback fired after a prompt is mounted
func (r *Registry) SetOpenCallback(callback func(p *Prompt)) {
	r.onOpen = callback
}

// SetResolveCallback sets the callback fired after a prompt is answered
func (r *Registry) SetResolveCallback(callback func(p *Prompt, outcome Outcome)) {
	r.onResolve = callback
}

// Open mounts a prompt of the given kind for a session
func (r *Registry) Open(sessionID string, kind models.PromptKind) *Prompt {
	p := &Prompt{
		ID:        fmt.Sprintf("prompt_%s", uuid.New().String()[:8]),
		SessionID: sessionID,
		Kind:      kind,
		OpenedAt:  time.Now(),
		Future:    newFuture(),
	}

	r.mu.Lock()
	r.prompts[p.ID] = p
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"prompt_id":  p.ID,
	}).Infof("Opened %s prompt", kind)

	if r.onOpen != nil {
		r.onOpen(p)
	}
	return p
}

// Resolve answers a prompt. A prompt can be answered only once.
func (r *Registry) Resolve(promptID string, outcome Outcome) (*Prompt, error) {
	p, exists := r.Get(promptID)
	if !exists {
		return nil, ErrPromptNotFound
	}

	if !validChoices[p.Kind][outcome.Choice] {
		return nil, fmt.Errorf("%w: %s prompt cannot be answered with %q", ErrInvalidChoice, p.Kind, outcome.Choice)
	}

	p.mu.Lock()
	if p.resolvedAt != nil {
		p.mu.Unlock()
		return nil, ErrAlreadyResolved
	}
	now := time.Now()
	p.resolvedAt = &now
	p.choice = outcome.Choice
	p.mu.Unlock()

	p.Future.complete(outcome)
	r.retire(p)

	logrus.WithFields(logrus.Fields{
		"session_id": p.SessionID,
		"prompt_id":  p.ID,
	}).Infof("Resolved %s prompt with %s", p.Kind, outcome.Choice)

	if r.onResolve != nil {
		r.onResolve(p, outcome)
	}
	return p, nil
}

// Get returns a prompt by ID
func (r *Registry) Get(promptID string) (*Prompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, exists := r.prompts[promptID]; exists {
		return p, true
	}
	p, exists := r.resolved[promptID]
	return p, exists
}

// retire moves an answered prompt into the resolved history
func (r *Registry) retire(p *Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.prompts[p.ID]; !exists {
		return
	}
	delete(r.prompts, p.ID)
	r.resolved[p.ID] = p
	r.resolvedOrder = append(r.resolvedOrder, p.ID)

	for len(r.resolvedOrder) > maxResolved {
		delete(r.resolved, r.resolvedOrder[0])
		r.resolvedOrder = r.resolvedOrder[1:]
	}
}

// Pending lists the unanswered prompts of a session, oldest first
func (r *Registry) Pending(sessionID string) []*Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]*Prompt, 0)
	for _, p := range r.prompts {
		if p.SessionID != sessionID {
			continue
		}
		select {
		case <-p.Future.Done():
		default:
			pending = append(pending, p)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].OpenedAt.Before(pending[j].OpenedAt)
	})
	return pending
}

// PendingCount returns the number of unanswered prompts across sessions
func (r *Registry) PendingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.prompts {
		select {
		case <-p.Future.Done():
		default:
			count++
		}
	}
	return count
}

// Forget drops every prompt of a session. Unanswered prompts stay pending
// forever; their waiters are expected to watch their own context.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.prompts {
		if p.SessionID == sessionID {
			delete(r.prompts, id)
		}
	}

	kept := r.resolvedOrder[:0]
	for _, id := range r.resolvedOrder {
		if r.resolved[id].SessionID == sessionID {
			delete(r.resolved, id)
			continue
		}
		kept = append(kept, id)
	}
	r.resolvedOrder = kept
}
