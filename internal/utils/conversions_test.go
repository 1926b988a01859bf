package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-gateway/internal/utils"
	"github.com/stretchr/testify/require"
)

// TestToStringSlice tests the claim shapes mappers emit
func TestToStringSlice(t *testing.T) {
	require.Equal(t, []string{"a"}, utils.ToStringSlice("a"))
	require.Equal(t, []string{"a", "b"}, utils.ToStringSlice([]any{"a", 1, " ", "b"}))
	require.Equal(t, []string{"x"}, utils.ToStringSlice([]string{"", "x"}))
	require.Empty(t, utils.ToStringSlice(nil))
	require.Empty(t, utils.ToStringSlice(42))
}
