package authflowrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/server/authflowrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testState() *authflowrepo.AuthFlowState {
	return &authflowrepo.AuthFlowState{
		CodeVerifier: "verifier",
		Nonce:        "nonce",
		ReturnURL:    "/dashboard",
		CreatedAt:    testNow,
	}
}

// TestRepos tests the shared contract of both implementations
func TestRepos(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repos := map[string]authflowrepo.Repo{
		"inmemory": authflowrepo.NewInMemoryRepo(10 * time.Minute).WithNowTime(func() time.Time { return testNow }),
		"redis":    authflowrepo.NewRedisRepo(client, "test:", 10*time.Minute),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Upsert(ctx, "state-1", testState()))

			got, err := repo.Get(ctx, "state-1")
			require.NoError(t, err)
			require.Equal(t, "verifier", got.CodeVerifier)
			require.Equal(t, "nonce", got.Nonce)
			require.Equal(t, "/dashboard", got.ReturnURL)
			require.True(t, testNow.Equal(got.CreatedAt))

			require.NoError(t, repo.Delete(ctx, "state-1"))
			_, err = repo.Get(ctx, "state-1")
			require.ErrorIs(t, err, errors.ErrNotFound)

			require.Error(t, repo.Upsert(ctx, "", testState()))
			require.Error(t, repo.Upsert(ctx, "x", nil))
		})
	}
}

// TestInMemoryRepo_Expiry tests that states older than the flow timeout are gone
func TestInMemoryRepo_Expiry(t *testing.T) {
	now := testNow
	repo := authflowrepo.NewInMemoryRepo(time.Minute).WithNowTime(func() time.Time { return now })
	require.NoError(t, repo.Upsert(context.Background(), "s", testState()))

	now = now.Add(2 * time.Minute)
	_, err := repo.Get(context.Background(), "s")
	require.ErrorIs(t, err, authflowrepo.ErrStateNotFound)
}

// TestRedisRepo_Expiry tests that Redis expires states after the flow timeout
func TestRedisRepo_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := authflowrepo.NewRedisRepo(client, "test:", time.Minute)

	require.NoError(t, repo.Upsert(context.Background(), "s", testState()))
	require.True(t, mr.Exists("test:authflow:s"))

	mr.FastForward(2 * time.Minute)
	_, err := repo.Get(context.Background(), "s")
	require.ErrorIs(t, err, authflowrepo.ErrStateNotFound)
}
