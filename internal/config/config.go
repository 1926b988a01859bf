package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	IdPConfig
	GatewayConfig
	RedisConfig
	SessionConfig
	EventsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
	GetExposedHeaders() string
}

// IdPConfig describes the external identity provider (a Keycloak realm).
type IdPConfig interface {
	GetIdPBaseURL() string
	GetRealm() string
	GetIssuerURL() string
	GetTokenEndpoint() string
	GetAdminUsersEndpoint() string
	GetClientID() string
	GetClientSecret() string
	GetRegistrationID() string
	GetScopes() []string
	GetExchangeAudience() string
}

// GatewayConfig controls the post-login orchestration.
type GatewayConfig interface {
	GetInternalGatewayURI() string
	GetBootstrapMode() BootstrapMode
	GetOrchestrationTimeout() time.Duration
	GetHTTPClientTimeout() time.Duration
	GetConcurrentCorrelation() bool
}

type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type SessionConfig interface {
	GetSessionMaxInactive() time.Duration
	GetAuthFlowTimeout() time.Duration
	GetSessionCookieName() string
}

type EventsConfig interface {
	GetEventsEnabled() bool
	GetEventsConsumerGroup() string
	GetEventsConsumerName() string
	GetEventsWorkers() int
	GetEventsBlock() time.Duration
	GetEventsStreams() []string
}

type mainConfig struct {
	EnvVars
	Cors
	IdP
	Gateway
	Redis
	Session
	Events
}

func New() Config {
	return mainConfig{}
}
