package server

import (
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-gateway/server/authflowrepo"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// LoginHandler starts the authorization code flow. The optional "return" query
// parameter is the page to resume once the login completes.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := generateRandomString(32)
		if err != nil {
			writeJSONError(w, "server_error", "failed to start login", http.StatusInternalServerError)
			return
		}
		nonce, err := generateRandomString(32)
		if err != nil {
			writeJSONError(w, "server_error", "failed to start login", http.StatusInternalServerError)
			return
		}
		verifier := oauth2.GenerateVerifier()

		flow := &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    safeReturnURL(r.URL.Query().Get("return")),
			CreatedAt:    s.nowTime(),
		}
		if err := s.repos.AuthFlows.Upsert(r.Context(), state, flow); err != nil {
			log.Ctx(r.Context()).Err(err).Msg("failed to store auth flow state")
			writeJSONError(w, "server_error", "failed to start login", http.StatusInternalServerError)
			return
		}

		authURL := s.repos.Oidc.OAuth2Config.AuthCodeURL(state,
			oauth2.S256ChallengeOption(verifier),
			oidc.Nonce(nonce),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}
