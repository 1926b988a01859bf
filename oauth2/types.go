package oauth2

// GrantType represents the OAuth 2.0 grant type sent to the IdP token endpoint.
// Determines what credentials accompany the token request.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: the login callback (the code is exchanged together with the PKCE verifier)
	// Returns: access_token, id_token, refresh_token (when offline_access was requested)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant authenticates the gateway itself.
	// Used in: obtaining the admin token for the IdP admin REST API
	// Token request includes: client_id, client_secret
	// Returns: access_token (no refresh_token or id_token)
	ClientCredentialsGrant GrantType = "client_credentials"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Used in: post-login refresh so that claims written by bootstrap become visible
	// Token request includes: refresh_token, client_id, client_secret
	// Returns: new access_token and, when the IdP rotates, a new refresh_token
	RefreshTokenGrant GrantType = "refresh_token"

	// TokenExchangeGrant swaps one token for another (RFC 8693).
	// Used in: obtaining a downstream-audience access token for the user
	// Token request includes: subject_token, subject_token_type, requested_token_type
	// Returns: access_token (issued_token_type tells what was issued)
	TokenExchangeGrant GrantType = "urn:ietf:params:oauth:grant-type:token-exchange"
)

// TokenType identifies a token in an RFC 8693 exchange.
type TokenType string

const (
	// AccessTokenType is used for both the subject and the requested token
	AccessTokenType TokenType = "urn:ietf:params:oauth:token-type:access_token"
	// RefreshTokenType is accepted by some IdPs as a requested token type
	RefreshTokenType TokenType = "urn:ietf:params:oauth:token-type:refresh_token"
)

// Form field names used on the token endpoint.
const (
	ParamGrantType          = "grant_type"
	ParamClientID           = "client_id"
	ParamClientSecret       = "client_secret"
	ParamRefreshToken       = "refresh_token"
	ParamSubjectToken       = "subject_token"
	ParamSubjectTokenType   = "subject_token_type"
	ParamRequestedTokenType = "requested_token_type"
	ParamAudience           = "audience"
	ParamScope              = "scope"
)

// BearerTokenType is the token_type the gateway stores for IdP issued access tokens
const BearerTokenType = "Bearer"
