package server

import (
	stderrors "errors"
	"net/http"

	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	"github.com/rs/zerolog/log"
)

// ListSessionsHandler returns the caller's live sessions, most recently used first
func (s *Server) ListSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := SessionFromContext(r.Context())
		summaries, err := s.repos.Directory.ListByPrincipal(r.Context(), current.Principal)
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("failed to list sessions")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

// DeleteAllSessionsHandler signs the caller out everywhere, including this session
func (s *Server) DeleteAllSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := SessionFromContext(r.Context())
		deleted, err := s.repos.Directory.DeleteAllByPrincipal(r.Context(), current.Principal)
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("failed to delete sessions")
			writeError(w, err)
			return
		}
		s.removeAuthorizedClient(r, current)
		s.clearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	}
}

// DeleteSessionHandler removes one of the caller's own sessions. Sessions of other
// principals are reported as not found.
func (s *Server) DeleteSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := SessionFromContext(r.Context())
		sessionID := r.PathValue("id")

		target, err := s.repos.Directory.Repo().FindByID(r.Context(), sessionID)
		if err != nil {
			if stderrors.Is(err, errors.ErrSessionNotFound) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeError(w, err)
			return
		}
		if target.Principal != current.Principal {
			writeJSONError(w, "not_found", "session not found", http.StatusNotFound)
			return
		}

		if err := s.repos.Directory.DeleteByID(r.Context(), sessionID); err != nil {
			writeError(w, err)
			return
		}
		s.removeAuthorizedClient(r, target)
		if sessionID == current.ID {
			s.clearSessionCookie(w, r)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutHandler ends the current session. It does not require a live session so a
// stale cookie can always be cleared.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil && cookie.Value != "" {
			session, err := s.repos.Directory.Repo().FindByID(r.Context(), cookie.Value)
			if err == nil {
				s.removeAuthorizedClient(r, session)
			}
			if err := s.repos.Directory.DeleteByID(r.Context(), cookie.Value); err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("failed to delete session on logout")
			}
		}
		s.clearSessionCookie(w, r)
		redirectSuccess(w, r, RouteAuthLoggedOut)
	}
}

func (s *Server) LoggedOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Logged out"))
	}
}

func (s *Server) removeAuthorizedClient(r *http.Request, session *sessions.Session) {
	authn := clients.Authentication{Principal: session.Principal, SessionID: session.ID}
	if err := s.repos.Clients.Remove(r.Context(), s.config.GetRegistrationID(), authn); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Str("session_id", session.ID).Msg("failed to remove authorized client")
	}
}
