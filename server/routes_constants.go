package server

// Route path constants
const (
	// Login flow
	RouteOAuth2Login    = "/oauth2/login"
	RouteOAuth2Callback = "/oauth2/callback"
	RouteAuthLogout     = "/auth/logout"
	RouteAuthLoggedOut  = "/auth/logged-out"

	// Sessions
	RouteAuthSessions = "/auth/sessions"
	RouteAuthSession  = "/auth/sessions/{id}"

	// Users
	RouteUsersSelf = "/users/self"
	RouteMe        = "/me"

	// Operations
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
