package fakeuserrepo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/users"
)

var _ users.AdminRepo = (*FakeAdminRepo)(nil)

// FakeAdminRepo is an in-memory IdP admin API. Records are deep copied on the way
// in and out so callers cannot mutate stored state.
type FakeAdminRepo struct {
	users map[string][]byte
	lock  sync.RWMutex

	// BeforePut, when set, runs before each write while no lock is held
	BeforePut func(userID string)
	// FailGet / FailPut force errors
	FailGet error
	FailPut error

	Gets int
	Puts int
}

func NewFakeAdminRepo() *FakeAdminRepo {
	return &FakeAdminRepo{users: make(map[string][]byte)}
}

// Seed stores a record without counting it as a write
func (r *FakeAdminRepo) Seed(user users.IdPUser) {
	r.lock.Lock()
	defer r.lock.Unlock()
	b, _ := json.Marshal(user)
	r.users[user.ID()] = b
}

func (r *FakeAdminRepo) Get(userID string) users.IdPUser {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return decode(r.users[userID])
}

func (r *FakeAdminRepo) GetUser(_ context.Context, _ string, userID string) (users.IdPUser, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Gets++
	if r.FailGet != nil {
		return nil, r.FailGet
	}
	b, ok := r.users[userID]
	if !ok {
		return nil, errors.NewStatusError(errors.ErrUpstreamAuth, "get user", 404)
	}
	return decode(b), nil
}

func (r *FakeAdminRepo) PutUser(_ context.Context, _ string, userID string, user users.IdPUser) error {
	if r.BeforePut != nil {
		r.BeforePut(userID)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Puts++
	if r.FailPut != nil {
		return r.FailPut
	}
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	r.users[userID] = b
	return nil
}

func decode(b []byte) users.IdPUser {
	if b == nil {
		return nil
	}
	var u users.IdPUser
	_ = json.Unmarshal(b, &u)
	return u
}
