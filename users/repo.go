package users

import "context"

// AdminRepo reads and writes user records held by the IdP admin API.
// Writes replace the whole record so callers must read, merge and write back.
type AdminRepo interface {
	GetUser(ctx context.Context, adminToken, userID string) (IdPUser, error)
	PutUser(ctx context.Context, adminToken, userID string, user IdPUser) error
}
