package config

import (
	"net/url"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

// Validate checks the settings the gateway cannot start without.
// Every failure wraps errors.ErrConfiguration.
func Validate(c Config) error {
	if !c.GetBootstrapMode().Valid() {
		return errors.Wrapf(errors.ErrConfiguration, "BOOTSTRAP_MODE %q must be %q or %q",
			c.GetBootstrapMode(), BootstrapModeRefresh, BootstrapModeCorrelate)
	}
	if c.GetClientID() == "" {
		return errors.Wrapf(errors.ErrConfiguration, "OIDC_CLIENT_ID is required")
	}
	for name, raw := range map[string]string{
		"INTERNAL_GATEWAY_URI": c.GetInternalGatewayURI(),
		"OIDC_ISSUER_URL":      c.GetIssuerURL(),
		"OIDC_TOKEN_ENDPOINT":  c.GetTokenEndpoint(),
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Wrapf(errors.ErrConfiguration, "%s %q is not an absolute URL", name, raw)
		}
	}
	if c.GetOrchestrationTimeout() <= 0 {
		return errors.Wrapf(errors.ErrConfiguration, "ORCHESTRATION_TIMEOUT must be positive")
	}
	if c.GetEventsWorkers() < 1 {
		return errors.Wrapf(errors.ErrConfiguration, "EVENTS_WORKERS must be at least 1")
	}
	return nil
}
