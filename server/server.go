package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-gateway/auth"
	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/jrsteele09/go-auth-gateway/internal/config"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	"github.com/jrsteele09/go-auth-gateway/server/authflowrepo"
	"github.com/jrsteele09/go-auth-gateway/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// OidcConfig is the relying party setup for the IdP
type OidcConfig struct {
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// NewOidcConfig discovers the IdP and builds the relying party configuration
func NewOidcConfig(ctx context.Context, idp config.IdPConfig, redirectURL string) (*OidcConfig, error) {
	provider, err := oidc.NewProvider(ctx, idp.GetIssuerURL())
	if err != nil {
		return nil, errors.Wrapf(err, "[NewOidcConfig] discover issuer %s", idp.GetIssuerURL())
	}
	return &OidcConfig{
		OAuth2Config: &oauth2.Config{
			ClientID:     idp.GetClientID(),
			ClientSecret: idp.GetClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       idp.GetScopes(),
		},
		OidcVerifier: provider.Verifier(&oidc.Config{ClientID: idp.GetClientID()}),
	}, nil
}

// PostLoginHook runs once per successful login and resumes the pending redirect
type PostLoginHook interface {
	OnAuthenticationSuccess(ctx context.Context, authn clients.Authentication, resume func()) auth.Outcome
}

// SelfDeleter removes the caller from the identity service and ends their sessions
type SelfDeleter interface {
	DeleteSelf(ctx context.Context, principal, accessToken string) (int, error)
}

// Repos holds the server's collaborators
type Repos struct {
	Directory *sessions.Directory
	Clients   clients.Repo
	AuthFlows authflowrepo.Repo
	PostLogin PostLoginHook
	Users     SelfDeleter
	Oidc      *OidcConfig
	Metrics   *metrics.Metrics
	// Health reports backing store reachability, optional
	Health func(ctx context.Context) error
}

type Server struct {
	env     string
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	repos   Repos
	nowTime func() time.Time
}

type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, repos Repos, options ...ServerOption) (*Server, error) {
	if repos.Directory == nil || repos.Clients == nil || repos.AuthFlows == nil {
		return nil, errors.New("[Server New] session directory, client repo and auth flow repo are required")
	}
	if repos.PostLogin == nil || repos.Users == nil {
		return nil, errors.New("[Server New] post-login hook and user service are required")
	}
	if repos.Oidc == nil || repos.Oidc.OAuth2Config == nil || repos.Oidc.OidcVerifier == nil {
		return nil, errors.New("[Server New] OIDC configuration is required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		repos:   repos,
		nowTime: time.Now,
	}
	s.env = config.GetEnv()
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	log.Info().Msgf("[%-19s] %s", methodColor(method)+paddedMethod+resetColor, path)
}

// logRequest is the DEV console line for a served request
func logRequest(method, path string, status int, took time.Duration) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	log.Info().Msgf("[%-19s] %s%d%s %s (%s)",
		methodColor(method)+paddedMethod+resetColor,
		statusColor(status), status, resetColor,
		path, took.Round(time.Microsecond))
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
