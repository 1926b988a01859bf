package fakeclientrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-gateway/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]*clients.AuthorizedClient
	lock    sync.RWMutex

	FailLoad error
	FailSave error
	Saves    int
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[string]*clients.AuthorizedClient),
	}
}

func key(registrationID string, authn clients.Authentication) string {
	return registrationID + "|" + authn.Principal + "|" + authn.SessionID
}

func (r *FakeClientRepo) Load(_ context.Context, registrationID string, authn clients.Authentication) (*clients.AuthorizedClient, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.FailLoad != nil {
		return nil, r.FailLoad
	}
	return r.clients[key(registrationID, authn)].Clone(), nil
}

func (r *FakeClientRepo) Save(_ context.Context, client *clients.AuthorizedClient, authn clients.Authentication) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Saves++
	if r.FailSave != nil {
		return r.FailSave
	}
	r.clients[key(client.RegistrationID, authn)] = client.Clone()
	return nil
}

func (r *FakeClientRepo) Remove(_ context.Context, registrationID string, authn clients.Authentication) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.clients, key(registrationID, authn))
	return nil
}
