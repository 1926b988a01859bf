package authflowrepo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.RWMutex
	states  map[string]*AuthFlowState
	ttl     time.Duration
	nowTime func() time.Time
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		states:  make(map[string]*AuthFlowState),
		ttl:     ttl,
		nowTime: time.Now,
	}
}

// WithNowTime sets the now time function (primarily for testing)
func (r *InMemoryRepo) WithNowTime(nowFunc func() time.Time) *InMemoryRepo {
	r.nowTime = nowFunc
	return r
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(_ context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// drop anything that has outlived the flow timeout
	for k, v := range r.states {
		if r.expired(v) {
			delete(r.states, k)
		}
	}
	cp := *authState
	r.states[state] = &cp
	return nil
}

// Get retrieves an auth flow state by state parameter
func (r *InMemoryRepo) Get(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, exists := r.states[state]
	if !exists || r.expired(authState) {
		return nil, ErrStateNotFound
	}
	cp := *authState
	return &cp, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(_ context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

func (r *InMemoryRepo) expired(s *AuthFlowState) bool {
	return r.ttl > 0 && r.nowTime().After(s.CreatedAt.Add(r.ttl))
}
