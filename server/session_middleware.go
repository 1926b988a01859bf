package server

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the authenticated *sessions.Session
const ContextKeySession ContextKey = "session"

// SessionFromContext returns the session placed on ctx by RequireSession
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	s, ok := ctx.Value(ContextKeySession).(*sessions.Session)
	return s, ok && s != nil
}

// RequireSession validates the session cookie and bumps the session's last-accessed
// time. Requests without a live session get a 401.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(s.config.GetSessionCookieName())
			if err != nil || cookie.Value == "" {
				writeJSONError(w, "unauthorized", "no session", http.StatusUnauthorized)
				return
			}

			repo := s.repos.Directory.Repo()
			session, err := repo.FindByID(r.Context(), cookie.Value)
			if err != nil {
				if stderrors.Is(err, errors.ErrSessionNotFound) {
					s.clearSessionCookie(w, r)
					writeJSONError(w, "unauthorized", "invalid session", http.StatusUnauthorized)
					return
				}
				log.Ctx(r.Context()).Err(err).Msg("session lookup failed")
				writeJSONError(w, "server_error", "session lookup failed", http.StatusInternalServerError)
				return
			}

			now := s.nowTime()
			if session.Expired(now) {
				if err := s.repos.Directory.DeleteByID(r.Context(), session.ID); err != nil {
					log.Ctx(r.Context()).Err(err).Str("session_id", session.ID).Msg("failed to delete expired session")
				}
				s.clearSessionCookie(w, r)
				writeJSONError(w, "unauthorized", "session expired", http.StatusUnauthorized)
				return
			}

			err = repo.Touch(r.Context(), session.ID, now)
			switch {
			case stderrors.Is(err, errors.ErrSessionNotFound), stderrors.Is(err, errors.ErrSessionExpired):
				// deleted or expired since it was read
				s.clearSessionCookie(w, r)
				writeJSONError(w, "unauthorized", "invalid session", http.StatusUnauthorized)
				return
			case err != nil:
				log.Ctx(r.Context()).Warn().Err(err).Str("session_id", session.ID).Msg("failed to touch session")
			default:
				session.LastAccessedAt = now
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, session)
			ctx = log.Ctx(ctx).With().Str("principal", session.Principal).Str("session_id", session.ID).Logger().WithContext(ctx)
			next(w, r.WithContext(ctx))
		}
	}
}
