package clients

import "context"

// Repo persists authorized clients. Load returns (nil, nil) when nothing is stored.
type Repo interface {
	Load(ctx context.Context, registrationID string, authn Authentication) (*AuthorizedClient, error)
	Save(ctx context.Context, client *AuthorizedClient, authn Authentication) error
	Remove(ctx context.Context, registrationID string, authn Authentication) error
}
