package config

import (
	"fmt"
	"strings"
)

type IdP struct{}

var _ IdPConfig = IdP{}

func (IdP) GetIdPBaseURL() string {
	return strings.TrimSuffix(GetEnv("KEYCLOAK_BASE_URL", "http://localhost:8180"), "/")
}

func (IdP) GetRealm() string {
	return GetEnv("KEYCLOAK_REALM", "gateway")
}

// GetIssuerURL is the OIDC issuer used for discovery and ID token verification
func (i IdP) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", fmt.Sprintf("%s/realms/%s", i.GetIdPBaseURL(), i.GetRealm()))
}

func (i IdP) GetTokenEndpoint() string {
	return GetEnv("OIDC_TOKEN_ENDPOINT", i.GetIssuerURL()+"/protocol/openid-connect/token")
}

// GetAdminUsersEndpoint is the admin REST collection; user records live at {endpoint}/{id}
func (i IdP) GetAdminUsersEndpoint() string {
	return fmt.Sprintf("%s/admin/realms/%s/users", i.GetIdPBaseURL(), i.GetRealm())
}

func (IdP) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "gateway")
}

func (IdP) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

// GetRegistrationID names the client registration authorized clients are stored under
func (IdP) GetRegistrationID() string {
	return GetEnv("OIDC_REGISTRATION_ID", "keycloak")
}

func (IdP) GetScopes() []string {
	return GetEnvList("OIDC_SCOPES", []string{"openid", "profile", "email", "offline_access"})
}

// GetExchangeAudience is the downstream audience requested by the token-exchange grant.
// Empty means the IdP default audience.
func (IdP) GetExchangeAudience() string {
	return GetEnv("TOKEN_EXCHANGE_AUDIENCE", "")
}
