package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionMaxInactive() time.Duration {
	return GetEnvDuration("SESSION_MAX_INACTIVE", 7*24*time.Hour)
}

// GetAuthFlowTimeout bounds how long a pending login (state, PKCE verifier, return URL) is kept
func (Session) GetAuthFlowTimeout() time.Duration {
	return GetEnvDuration("AUTH_FLOW_TIMEOUT", 10*time.Minute)
}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "SESSION")
}
