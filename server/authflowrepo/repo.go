// Package authflowrepo holds in-flight login state between the redirect to the IdP
// and the callback, including the URL the user was trying to reach.
package authflowrepo

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

type AuthFlowState struct {
	CodeVerifier string    `json:"codeVerifier"`
	Nonce        string    `json:"nonce"`
	ReturnURL    string    `json:"returnUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrStateNotFound is returned for unknown or expired state values
var ErrStateNotFound = errors.Wrapf(errors.ErrNotFound, "auth flow state")

// Repo stores login state keyed by the OAuth2 state parameter. Entries expire
// after the flow timeout.
type Repo interface {
	Upsert(ctx context.Context, state string, authState *AuthFlowState) error
	Get(ctx context.Context, state string) (*AuthFlowState, error)
	Delete(ctx context.Context, state string) error
}
