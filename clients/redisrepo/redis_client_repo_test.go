package redisrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/jrsteele09/go-auth-gateway/clients/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testRegistrationID = "keycloak"
	testPrincipal      = "jane@example.com"
)

func setupRepo(t *testing.T) (*redisrepo.RedisClientRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisrepo.New(client, "test:", time.Hour), mr
}

func testClient() *clients.AuthorizedClient {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &clients.AuthorizedClient{
		RegistrationID: testRegistrationID,
		PrincipalName:  testPrincipal,
		AccessToken: clients.AccessToken{
			Value:     "A1",
			Type:      "Bearer",
			IssuedAt:  now,
			ExpiresAt: now.Add(5 * time.Minute),
			Scopes:    []string{"openid", "email"},
		},
		RefreshToken: &clients.RefreshToken{Value: "R1", IssuedAt: now},
	}
}

// TestSaveLoad tests storing and reading back an authorized client
func TestSaveLoad(t *testing.T) {
	repo, mr := setupRepo(t)
	authn := clients.Authentication{Principal: testPrincipal, SessionID: "s1"}

	require.NoError(t, repo.Save(context.Background(), testClient(), authn))

	got, err := repo.Load(context.Background(), testRegistrationID, authn)
	require.NoError(t, err)
	require.Equal(t, testClient(), got)

	// TTL follows the session lifetime
	require.Equal(t, time.Hour, mr.TTL("test:authorized_client:keycloak:jane@example.com:s1"))
}

// TestLoad_Missing tests that nothing stored is (nil, nil)
func TestLoad_Missing(t *testing.T) {
	repo, _ := setupRepo(t)

	got, err := repo.Load(context.Background(), testRegistrationID, clients.Authentication{Principal: testPrincipal})
	require.NoError(t, err)
	require.Nil(t, got)
}

// TestSave_PerSession tests that two logins of one principal keep separate clients
func TestSave_PerSession(t *testing.T) {
	repo, _ := setupRepo(t)
	a := clients.Authentication{Principal: testPrincipal, SessionID: "s1"}
	b := clients.Authentication{Principal: testPrincipal, SessionID: "s2"}

	first := testClient()
	second := testClient()
	second.AccessToken.Value = "A2"
	require.NoError(t, repo.Save(context.Background(), first, a))
	require.NoError(t, repo.Save(context.Background(), second, b))

	got, err := repo.Load(context.Background(), testRegistrationID, a)
	require.NoError(t, err)
	require.Equal(t, "A1", got.AccessToken.Value)

	require.NoError(t, repo.Remove(context.Background(), testRegistrationID, a))
	got, err = repo.Load(context.Background(), testRegistrationID, a)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = repo.Load(context.Background(), testRegistrationID, b)
	require.NoError(t, err)
	require.Equal(t, "A2", got.AccessToken.Value)
}
