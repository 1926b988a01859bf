package oauth2

// TokenResponse represents the IdP token endpoint response.
// This is the RFC 6749 format plus the fields Keycloak and RFC 8693 add.
type TokenResponse struct {
	// AccessToken is the JWT used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token, usually "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Absent or zero means the gateway falls back to its default lifetime.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is present when the IdP issued or rotated a refresh token.
	// Blank means the caller keeps the refresh token it already holds.
	RefreshToken string `json:"refresh_token,omitempty"`

	// RefreshExpiresIn is the lifetime in seconds of the refresh token (Keycloak extension).
	RefreshExpiresIn int64 `json:"refresh_expires_in,omitempty"`

	// IssuedTokenType is set on token-exchange responses (RFC 8693 section 2.2.1).
	IssuedTokenType string `json:"issued_token_type,omitempty"`

	// Scope is the space-separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse is the RFC 6749 section 5.2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}
