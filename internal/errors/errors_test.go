package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// TestStatusError tests that a status error matches its kind and reports its status through wrapping
func TestStatusError(t *testing.T) {
	se := errors.NewStatusError(errors.ErrUpstreamAuth, "refresh_token grant", http.StatusBadRequest)
	se.Code = "invalid_grant"
	se.Description = "Token is not active"

	wrapped := pkgerrors.Wrap(fmt.Errorf("outer: %w", se), "[Broker.RefreshAccessToken]")
	require.True(t, errors.Is(wrapped, errors.ErrUpstreamAuth))
	require.False(t, errors.Is(wrapped, errors.ErrBootstrap))
	require.Equal(t, http.StatusBadRequest, errors.StatusCode(wrapped))
	require.Contains(t, se.Error(), "invalid_grant - Token is not active")

	var target *errors.StatusError
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, "refresh_token grant", target.Op)
}

// TestStatusCode_None tests errors without a status
func TestStatusCode_None(t *testing.T) {
	require.Equal(t, 0, errors.StatusCode(errors.ErrInternal))
	require.Equal(t, 0, errors.StatusCode(nil))
}

// TestWrapf tests wrapping keeps the sentinel and nil stays nil
func TestWrapf(t *testing.T) {
	err := errors.Wrapf(errors.ErrConfiguration, "[NewBroker] %s is required", "token endpoint")
	require.ErrorIs(t, err, errors.ErrConfiguration)
	require.Equal(t, "[NewBroker] token endpoint is required: configuration error", err.Error())

	require.NoError(t, errors.Wrapf(nil, "nothing"))
}
