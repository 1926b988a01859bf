package correlation_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-gateway/internal/correlation"
	"github.com/stretchr/testify/require"
)

// TestPropagate tests that the id on the context is copied onto outgoing requests
func TestPropagate(t *testing.T) {
	id := correlation.NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	ctx := correlation.WithID(context.Background(), id)
	require.Equal(t, id, correlation.FromContext(ctx))

	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	correlation.Propagate(ctx, req)
	require.Equal(t, id, req.Header.Get(correlation.Header))
}

// TestPropagate_NoID tests that nothing is set when the context has no id
func TestPropagate_NoID(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	correlation.Propagate(context.Background(), req)
	require.Empty(t, req.Header.Get(correlation.Header))
}
