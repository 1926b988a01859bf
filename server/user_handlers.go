package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/token/jwt"
	"github.com/rs/zerolog/log"
)

// DeleteSelfHandler deletes the caller from the identity service and ends all of
// their sessions
func (s *Server) DeleteSelfHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := SessionFromContext(r.Context())
		client, err := s.loadAuthorizedClient(r, current.Principal, current.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		deleted, err := s.repos.Users.DeleteSelf(r.Context(), current.Principal, client.AccessToken.Value)
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("delete self failed")
			writeError(w, err)
			return
		}
		log.Ctx(r.Context()).Info().Int("sessions_deleted", deleted).Msg("user deleted")
		s.removeAuthorizedClient(r, current)
		s.clearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

type meResponse struct {
	Principal string   `json:"principal"`
	SessionID string   `json:"sessionId"`
	Subject   string   `json:"sub,omitempty"`
	Email     string   `json:"email,omitempty"`
	Name      string   `json:"name,omitempty"`
	UserID    string   `json:"userId,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

// MeHandler describes the caller from the access token held for their session
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := SessionFromContext(r.Context())
		resp := meResponse{Principal: current.Principal, SessionID: current.ID}

		client, err := s.loadAuthorizedClient(r, current.Principal, current.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		claims, err := jwt.Parse(client.AccessToken.Value)
		if err != nil {
			// opaque access tokens carry no claims
			log.Ctx(r.Context()).Debug().Err(err).Msg("access token is not a JWT")
			resp.Scopes = client.AccessToken.Scopes
			writeJSON(w, http.StatusOK, resp)
			return
		}
		resp.Subject = claims.Subject
		resp.Email = claims.Email
		resp.Name = claims.Name
		resp.UserID = claims.UserID
		resp.Scopes = claims.Scopes
		if len(resp.Scopes) == 0 {
			resp.Scopes = client.AccessToken.Scopes
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) loadAuthorizedClient(r *http.Request, principal, sessionID string) (*clients.AuthorizedClient, error) {
	authn := clients.Authentication{Principal: principal, SessionID: sessionID}
	client, err := s.repos.Clients.Load(r.Context(), s.config.GetRegistrationID(), authn)
	if err != nil {
		return nil, err
	}
	if client == nil || client.AccessToken.Value == "" {
		return nil, errors.Wrapf(errors.ErrClientNotFound, "no authorized client for session %s", sessionID)
	}
	return client, nil
}
