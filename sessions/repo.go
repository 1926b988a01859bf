package sessions

import (
	"context"
	"time"
)

// Repo is the shared session store. Implementations do their own concurrency control.
type Repo interface {
	// Save creates or replaces a session
	Save(ctx context.Context, session *Session) error

	// FindByID returns errors.ErrSessionNotFound when the session is missing or expired
	FindByID(ctx context.Context, sessionID string) (*Session, error)

	// Touch records an access to the session
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// DeleteByID removes a session. Deleting a missing session is not an error.
	DeleteByID(ctx context.Context, sessionID string) error
}

// IndexedRepo is a session store that maintains a principal index.
type IndexedRepo interface {
	Repo

	// FindByPrincipalName returns the principal's live sessions keyed by session id
	FindByPrincipalName(ctx context.Context, principal string) (map[string]*Session, error)
}
