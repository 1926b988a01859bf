package config

import (
	"strings"
	"time"
)

// BootstrapMode selects the identity service bootstrap contract.
type BootstrapMode string

const (
	// BootstrapModeRefresh expects a bodiless 204 from the identity service. The identity
	// service populates the user's claims asynchronously and the gateway refreshes tokens.
	BootstrapModeRefresh BootstrapMode = "refresh"
	// BootstrapModeCorrelate expects a JSON body with the userId, which the gateway writes
	// onto the IdP user record before refreshing tokens.
	BootstrapModeCorrelate BootstrapMode = "correlate"
)

func (m BootstrapMode) Valid() bool {
	return m == BootstrapModeRefresh || m == BootstrapModeCorrelate
}

type Gateway struct{}

var _ GatewayConfig = Gateway{}

// GetInternalGatewayURI is the base URI of the internal gateway fronting the identity service
func (Gateway) GetInternalGatewayURI() string {
	return strings.TrimSuffix(GetEnv("INTERNAL_GATEWAY_URI", "http://localhost:8081"), "/")
}

func (Gateway) GetBootstrapMode() BootstrapMode {
	return BootstrapMode(strings.ToLower(GetEnv("BOOTSTRAP_MODE", string(BootstrapModeRefresh))))
}

func (Gateway) GetOrchestrationTimeout() time.Duration {
	return GetEnvDuration("ORCHESTRATION_TIMEOUT", 10*time.Second)
}

func (Gateway) GetHTTPClientTimeout() time.Duration {
	return GetEnvDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second)
}

// GetConcurrentCorrelation runs the userId correlation alongside the token refresh
func (Gateway) GetConcurrentCorrelation() bool {
	return GetEnvBool("CONCURRENT_CORRELATION", false)
}
