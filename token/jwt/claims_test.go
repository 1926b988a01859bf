package jwt_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/token/jwt"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// TestParse tests reading the gateway relevant claims
func TestParse(t *testing.T) {
	iat := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := signed(t, jwtlib.MapClaims{
		"sub":                "kc-123",
		"preferred_username": "jane@example.com",
		"email":              "jane@example.com",
		"userId":             []any{"u-42"},
		"aud":                "account",
		"scope":              "openid email profile",
		"iat":                iat.Unix(),
		"exp":                iat.Add(15 * time.Minute).Unix(),
	})

	c, err := jwt.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "kc-123", c.Subject)
	require.Equal(t, "u-42", c.UserID)
	require.Equal(t, []string{"account"}, c.Audience)
	require.Equal(t, []string{"openid", "email", "profile"}, c.Scopes)
	require.True(t, c.IssuedAt.Equal(iat))
	require.True(t, c.ExpiresAt.Equal(iat.Add(15*time.Minute)))
	require.Equal(t, "jane@example.com", c.Principal())
}

// TestClaims_Principal tests the principal fallbacks
func TestClaims_Principal(t *testing.T) {
	require.Equal(t, "a@b.com", (&jwt.Claims{Subject: "s", Email: "a@b.com"}).Principal())
	require.Equal(t, "s", (&jwt.Claims{Subject: "s"}).Principal())
}

// TestParse_Invalid tests malformed input
func TestParse_Invalid(t *testing.T) {
	_, err := jwt.Parse("")
	require.ErrorIs(t, err, errors.ErrInvalidToken)

	_, err = jwt.Parse("not-a-jwt")
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}
