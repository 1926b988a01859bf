package redisclient_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/redisclient"
	"github.com/stretchr/testify/require"
)

// TestNew tests connecting to a running server
func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := redisclient.New(context.Background(), redisclient.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

// TestNew_Unreachable tests that a dead server is a configuration error
func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redisclient.New(context.Background(), redisclient.Config{Addr: addr})
	require.ErrorIs(t, err, errors.ErrConfiguration)
}
