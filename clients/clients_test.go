package clients_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/stretchr/testify/require"
)

// TestAccessToken_Valid tests the issuedAt < expiresAt invariant check
func TestAccessToken_Valid(t *testing.T) {
	now := time.Now()
	require.True(t, clients.AccessToken{Value: "a", IssuedAt: now, ExpiresAt: now.Add(time.Second)}.Valid())
	require.False(t, clients.AccessToken{Value: "a", IssuedAt: now, ExpiresAt: now}.Valid())
	require.False(t, clients.AccessToken{IssuedAt: now, ExpiresAt: now.Add(time.Second)}.Valid())
}

// TestAuthorizedClient_Clone tests that a clone shares no mutable state
func TestAuthorizedClient_Clone(t *testing.T) {
	c := &clients.AuthorizedClient{
		AccessToken:  clients.AccessToken{Value: "a", Scopes: []string{"openid"}},
		RefreshToken: &clients.RefreshToken{Value: "r"},
	}
	cp := c.Clone()
	cp.AccessToken.Scopes[0] = "changed"
	cp.RefreshToken.Value = "changed"

	require.Equal(t, "openid", c.AccessToken.Scopes[0])
	require.Equal(t, "r", c.RefreshToken.Value)
	require.True(t, c.HasRefreshToken())
	require.False(t, (&clients.AuthorizedClient{}).HasRefreshToken())
	require.Nil(t, (*clients.AuthorizedClient)(nil).Clone())
}
