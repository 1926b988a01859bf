package clients

import (
	"slices"
	"time"
)

// AccessToken is the access token half of an authorized client
type AccessToken struct {
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Scopes    []string  `json:"scopes,omitempty"`
}

// Valid reports whether the token satisfies issuedAt < expiresAt
func (a AccessToken) Valid() bool {
	return a.Value != "" && a.IssuedAt.Before(a.ExpiresAt)
}

type RefreshToken struct {
	Value    string    `json:"value"`
	IssuedAt time.Time `json:"issuedAt"`
}

// AuthorizedClient is the token pair held for a principal under one client registration.
type AuthorizedClient struct {
	RegistrationID string        `json:"registrationId"`
	PrincipalName  string        `json:"principalName"`
	AccessToken    AccessToken   `json:"accessToken"`
	RefreshToken   *RefreshToken `json:"refreshToken,omitempty"`
}

// HasRefreshToken reports whether a usable refresh token is present
func (c *AuthorizedClient) HasRefreshToken() bool {
	return c.RefreshToken != nil && c.RefreshToken.Value != ""
}

// Clone returns a deep copy
func (c *AuthorizedClient) Clone() *AuthorizedClient {
	if c == nil {
		return nil
	}
	out := *c
	out.AccessToken.Scopes = slices.Clone(c.AccessToken.Scopes)
	if c.RefreshToken != nil {
		rt := *c.RefreshToken
		out.RefreshToken = &rt
	}
	return &out
}

// Authentication identifies whose authorized client is being loaded or saved.
// SessionID scopes the record to one login so concurrent logins of the same
// principal do not share tokens.
type Authentication struct {
	Principal string
	SessionID string
	Subject   string // IdP subject (user id at the IdP)
}
