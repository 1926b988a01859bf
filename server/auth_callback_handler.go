package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/jrsteele09/go-auth-gateway/oauth2"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	"github.com/jrsteele09/go-auth-gateway/token/jwt"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

// defaultAccessTokenLifetime applies when the IdP omits expires_in
const defaultAccessTokenLifetime = 900 * time.Second

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data (form_post response mode)
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			log.Ctx(r.Context()).Warn().Str("error", errorParam).Str("error_description", errorDesc).Msg("authorization failed at IdP")
			writeJSONError(w, errorParam, errorDesc, http.StatusBadRequest)
			return
		}
		if code == "" || state == "" {
			writeJSONError(w, "invalid_request", "missing code or state parameter", http.StatusBadRequest)
			return
		}

		flow, err := s.repos.AuthFlows.Get(r.Context(), state)
		if err != nil || flow == nil {
			writeJSONError(w, "invalid_request", "invalid state parameter", http.StatusBadRequest)
			return
		}
		// single use
		if err := s.repos.AuthFlows.Delete(r.Context(), state); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("failed to delete auth flow state")
		}

		oidcConfig := s.repos.Oidc
		token, err := oidcConfig.OAuth2Config.Exchange(r.Context(), code, xoauth2.VerifierOption(flow.CodeVerifier))
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("authorization code exchange failed")
			writeJSONError(w, "server_error", "token exchange failed", http.StatusBadGateway)
			return
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			writeJSONError(w, "server_error", "no id_token in token response", http.StatusBadGateway)
			return
		}
		idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("id token verification failed")
			writeJSONError(w, "invalid_token", "id token verification failed", http.StatusUnauthorized)
			return
		}

		var idClaims struct {
			Nonce             string `json:"nonce"`
			Subject           string `json:"sub"`
			Email             string `json:"email"`
			PreferredUsername string `json:"preferred_username"`
		}
		if err := idToken.Claims(&idClaims); err != nil {
			writeJSONError(w, "invalid_token", fmt.Sprintf("failed to read claims: %v", err), http.StatusUnauthorized)
			return
		}
		if idClaims.Nonce != flow.Nonce {
			writeJSONError(w, "invalid_token", "invalid nonce", http.StatusUnauthorized)
			return
		}

		claims := jwt.Claims{
			Subject:           idClaims.Subject,
			Email:             idClaims.Email,
			PreferredUsername: idClaims.PreferredUsername,
		}
		principal := claims.Principal()
		now := s.nowTime()

		session := &sessions.Session{
			ID:                  uuid.NewString(),
			Principal:           principal,
			CreatedAt:           now,
			LastAccessedAt:      now,
			MaxInactiveInterval: s.config.GetSessionMaxInactive(),
		}
		if err := s.repos.Directory.Repo().Save(r.Context(), session); err != nil {
			log.Ctx(r.Context()).Err(err).Str("principal", principal).Msg("failed to create session")
			writeJSONError(w, "server_error", "failed to create session", http.StatusInternalServerError)
			return
		}
		s.setSessionCookie(w, r, session.ID)

		authn := clients.Authentication{
			Principal: principal,
			SessionID: session.ID,
			Subject:   idClaims.Subject,
		}
		client := s.authorizedClient(token, principal, now)
		if err := s.repos.Clients.Save(r.Context(), client, authn); err != nil {
			log.Ctx(r.Context()).Err(err).Str("principal", principal).Msg("failed to save authorized client")
			writeJSONError(w, "server_error", "failed to save tokens", http.StatusInternalServerError)
			return
		}

		ctx := log.Ctx(r.Context()).With().Str("principal", principal).Str("session_id", session.ID).Logger().WithContext(r.Context())
		returnURL := safeReturnURL(flow.ReturnURL)
		s.repos.PostLogin.OnAuthenticationSuccess(ctx, authn, func() {
			redirectSuccess(w, r, returnURL)
		})
	}
}

func (s *Server) authorizedClient(token *xoauth2.Token, principal string, now time.Time) *clients.AuthorizedClient {
	expiresAt := token.Expiry
	if expiresAt.IsZero() || !now.Before(expiresAt) {
		expiresAt = now.Add(defaultAccessTokenLifetime)
	}
	scopes := s.config.GetScopes()
	if scope, ok := token.Extra("scope").(string); ok && strings.TrimSpace(scope) != "" {
		scopes = strings.Fields(scope)
	}

	client := &clients.AuthorizedClient{
		RegistrationID: s.config.GetRegistrationID(),
		PrincipalName:  principal,
		AccessToken: clients.AccessToken{
			Value:     token.AccessToken,
			Type:      oauth2.BearerTokenType,
			IssuedAt:  now,
			ExpiresAt: expiresAt,
			Scopes:    scopes,
		},
	}
	if token.RefreshToken != "" {
		client.RefreshToken = &clients.RefreshToken{Value: token.RefreshToken, IssuedAt: now}
	}
	return client
}
