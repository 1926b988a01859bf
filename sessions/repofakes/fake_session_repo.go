package fakesessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/sessions"
)

var _ sessions.IndexedRepo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory indexed session store
type FakeSessionRepo struct {
	sessions map[string]*sessions.Session
	lock     sync.RWMutex

	// FailDelete forces DeleteByID to fail for the given session ids
	FailDelete map[string]error
	// FailFind forces FindByPrincipalName to fail
	FailFind error
	// BeforeTouch, when set, runs at the start of Touch
	BeforeTouch func(sessionID string)
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions:   make(map[string]*sessions.Session),
		FailDelete: make(map[string]error),
	}
}

func (r *FakeSessionRepo) Save(_ context.Context, s *sessions.Session) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *FakeSessionRepo) FindByID(_ context.Context, sessionID string) (*sessions.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *FakeSessionRepo) Touch(_ context.Context, sessionID string, at time.Time) error {
	if r.BeforeTouch != nil {
		r.BeforeTouch(sessionID)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return errors.ErrSessionNotFound
	}
	s.LastAccessedAt = at
	return nil
}

func (r *FakeSessionRepo) DeleteByID(_ context.Context, sessionID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.FailDelete[sessionID]; err != nil {
		return err
	}
	delete(r.sessions, sessionID)
	return nil
}

func (r *FakeSessionRepo) FindByPrincipalName(_ context.Context, principal string) (map[string]*sessions.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.FailFind != nil {
		return nil, r.FailFind
	}
	out := map[string]*sessions.Session{}
	for id, s := range r.sessions {
		if s.Principal == principal {
			cp := *s
			out[id] = &cp
		}
	}
	return out, nil
}

// Count returns how many sessions are stored
func (r *FakeSessionRepo) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}

// UnindexedRepo is a session store without a principal index
type UnindexedRepo struct {
	Inner *FakeSessionRepo
}

var _ sessions.Repo = UnindexedRepo{}

func (u UnindexedRepo) Save(ctx context.Context, s *sessions.Session) error {
	return u.Inner.Save(ctx, s)
}

func (u UnindexedRepo) FindByID(ctx context.Context, sessionID string) (*sessions.Session, error) {
	return u.Inner.FindByID(ctx, sessionID)
}

func (u UnindexedRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	return u.Inner.Touch(ctx, sessionID, at)
}

func (u UnindexedRepo) DeleteByID(ctx context.Context, sessionID string) error {
	return u.Inner.DeleteByID(ctx, sessionID)
}
