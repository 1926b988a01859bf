package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("GET "+RouteOAuth2Login, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteOAuth2Callback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Callback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...)) // form_post response mode
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLoggedOut, ChainMiddleware(s.LoggedOutHandler(), s.HTMLMiddleWare()...))

	// Sessions of the caller
	s.RegisterRouteHandler("GET "+RouteAuthSessions, ChainMiddleware(s.ListSessionsHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("DELETE "+RouteAuthSessions, ChainMiddleware(s.DeleteAllSessionsHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("DELETE "+RouteAuthSession, ChainMiddleware(s.DeleteSessionHandler(), s.APIMiddleware(s.RequireSession())...))

	// Users
	s.RegisterRouteHandler("DELETE "+RouteUsersSelf, ChainMiddleware(s.DeleteSelfHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireSession())...))

	// CORS preflight for the API routes
	for _, route := range []string{RouteAuthSessions, RouteAuthSession, RouteUsersSelf, RouteMe} {
		s.RegisterRouteHandler("OPTIONS "+route, ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}, s.APIMiddleware()...))
	}

	// Operations
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	if s.repos.Metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.repos.Metrics.Handler())
	}
}

// HealthHandler reports UP, or DOWN when the backing store cannot be reached
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.repos.Health != nil {
			if err := s.repos.Health(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
	}
}
