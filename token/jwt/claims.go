package jwt

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/utils"
)

// Claims are the access token claims the gateway reads. The tokens come straight
// from the IdP token endpoint over TLS and live server-side in the session, so
// they are parsed without signature verification.
type Claims struct {
	Subject           string    `json:"sub"`
	PreferredUsername string    `json:"preferred_username,omitempty"`
	Email             string    `json:"email,omitempty"`
	Name              string    `json:"name,omitempty"`
	UserID            string    `json:"userId,omitempty"` // written by the identity service bootstrap
	Issuer            string    `json:"iss,omitempty"`
	Audience          []string  `json:"aud,omitempty"`
	Scopes            []string  `json:"scopes,omitempty"`
	IssuedAt          time.Time `json:"iat"`
	ExpiresAt         time.Time `json:"exp"`
}

// Principal is the name sessions are indexed under: preferred_username, then email, then sub
func (c *Claims) Principal() string {
	switch {
	case c.PreferredUsername != "":
		return c.PreferredUsername
	case c.Email != "":
		return c.Email
	default:
		return c.Subject
	}
}

// Parse reads the claims of a raw JWT without verifying it
func Parse(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[jwt.Parse] empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[jwt.Parse] %v", err)
	}
	mc, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "[jwt.Parse] unexpected claims type")
	}

	c := &Claims{
		PreferredUsername: stringClaim(mc, "preferred_username"),
		Email:             stringClaim(mc, "email"),
		Name:              stringClaim(mc, "name"),
		UserID:            stringClaim(mc, "userId"),
	}
	c.Subject, _ = mc.GetSubject()
	c.Issuer, _ = mc.GetIssuer()
	if aud, err := mc.GetAudience(); err == nil {
		c.Audience = aud
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if scope := stringClaim(mc, "scope"); scope != "" {
		c.Scopes = strings.Fields(scope)
	}
	return c, nil
}

func stringClaim(mc jwtlib.MapClaims, name string) string {
	switch v := mc[name].(type) {
	case string:
		return v
	case []any:
		// some mappers emit single valued user attributes as arrays
		if vals := utils.ToStringSlice(v); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}
