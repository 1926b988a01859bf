// Package token talks to the IdP token endpoint and admin API on behalf of the gateway.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/correlation"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	"github.com/jrsteele09/go-auth-gateway/oauth2"
	"github.com/jrsteele09/go-auth-gateway/users"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultExpiresIn is used when the IdP omits expires_in
	DefaultExpiresIn = 900 * time.Second

	defaultHTTPTimeout  = 30 * time.Second
	maxResponseBodySize = 1 << 20

	redactedPlaceholder = "[REDACTED]"
	emptyPlaceholder    = "<empty>"
)

// Result is the outcome of a refresh or token-exchange grant. It is handed to the
// caller and never stored by the broker.
type Result struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64 // seconds, 0 when the IdP did not say
	RefreshExpiresIn int64 // seconds, 0 when the IdP did not say
	IssuedTokenType  string
	Scope            string
}

// ExpiresAt converts the relative lifetime into an absolute instant, falling back to
// DefaultExpiresIn when the IdP omitted it.
func (r *Result) ExpiresAt(now time.Time) time.Time {
	if r.ExpiresIn <= 0 {
		return now.Add(DefaultExpiresIn)
	}
	return now.Add(time.Duration(r.ExpiresIn) * time.Second)
}

func (r *Result) String() string {
	redact := func(s string) string {
		if s == "" {
			return emptyPlaceholder
		}
		return redactedPlaceholder
	}
	return fmt.Sprintf("Result{AccessToken: %s, RefreshToken: %s, ExpiresIn: %d, RefreshExpiresIn: %d}",
		redact(r.AccessToken), redact(r.RefreshToken), r.ExpiresIn, r.RefreshExpiresIn)
}

// BrokerConfig holds the IdP endpoints and the gateway's confidential client credentials
type BrokerConfig struct {
	TokenEndpoint      string
	AdminUsersEndpoint string // e.g. https://idp/admin/realms/{realm}/users
	ClientID           string
	ClientSecret       string
	ExchangeAudience   string // optional audience for token exchange
}

// Broker performs the refresh, client-credentials and token-exchange grants and
// reads and writes IdP user records. It holds no token state.
type Broker struct {
	cfg        BrokerConfig
	admin      *clientcredentials.Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

var _ users.AdminRepo = (*Broker)(nil)

type BrokerOption func(*Broker)

func WithHTTPClient(c *http.Client) BrokerOption {
	return func(b *Broker) {
		b.httpClient = c
	}
}

func WithMetrics(m *metrics.Metrics) BrokerOption {
	return func(b *Broker) {
		b.metrics = m
	}
}

// NewBroker validates the configuration and builds a broker
func NewBroker(cfg BrokerConfig, options ...BrokerOption) (*Broker, error) {
	if cfg.TokenEndpoint == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewBroker] token endpoint is required")
	}
	if cfg.AdminUsersEndpoint == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewBroker] admin users endpoint is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewBroker] client id is required")
	}

	b := &Broker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range options {
		opt(b)
	}

	b.admin = &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenEndpoint,
		AuthStyle:    xoauth2.AuthStyleInParams,
	}
	return b, nil
}

// AdminToken obtains a fresh admin access token with the client-credentials grant.
// The token is not cached.
func (b *Broker) AdminToken(ctx context.Context) (tok string, err error) {
	defer func() { b.metrics.UpstreamCall("admin_token", err) }()

	ctx = context.WithValue(ctx, xoauth2.HTTPClient, b.httpClient)
	t, err := b.admin.Token(ctx)
	if err != nil {
		var re *xoauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			se := errors.NewStatusError(errors.ErrUpstreamAuth, "client_credentials grant", re.Response.StatusCode)
			se.Code = re.ErrorCode
			se.Description = re.ErrorDescription
			return "", se
		}
		return "", fmt.Errorf("%w: [Broker.AdminToken] %w", errors.ErrUpstreamAuth, err)
	}
	return t.AccessToken, nil
}

// RefreshAccessToken runs the refresh_token grant. A missing or blank rotated refresh
// token in the response means the input refresh token stays valid and is returned.
// An IdP rejection is terminal and not retried.
func (b *Broker) RefreshAccessToken(ctx context.Context, refreshToken string) (res *Result, err error) {
	defer func() { b.metrics.UpstreamCall("refresh", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Broker.RefreshAccessToken] refresh token is empty")
	}

	form := url.Values{}
	form.Set(oauth2.ParamGrantType, string(oauth2.RefreshTokenGrant))
	form.Set(oauth2.ParamRefreshToken, refreshToken)

	res, err = b.grant(ctx, "refresh_token grant", form)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.RefreshToken) == "" {
		res.RefreshToken = refreshToken
	}
	log.Debug().Stringer("result", res).Msg("refreshed access token")
	return res, nil
}

// ExchangeAccessToken swaps the user's access token for one issued to the downstream
// audience (RFC 8693).
func (b *Broker) ExchangeAccessToken(ctx context.Context, subjectToken string) (res *Result, err error) {
	defer func() { b.metrics.UpstreamCall("token_exchange", err) }()

	if strings.TrimSpace(subjectToken) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Broker.ExchangeAccessToken] subject token is empty")
	}

	form := url.Values{}
	form.Set(oauth2.ParamGrantType, string(oauth2.TokenExchangeGrant))
	form.Set(oauth2.ParamSubjectToken, subjectToken)
	form.Set(oauth2.ParamSubjectTokenType, string(oauth2.AccessTokenType))
	form.Set(oauth2.ParamRequestedTokenType, string(oauth2.AccessTokenType))
	if b.cfg.ExchangeAudience != "" {
		form.Set(oauth2.ParamAudience, b.cfg.ExchangeAudience)
	}
	return b.grant(ctx, "token exchange", form)
}

// GetUser reads the full IdP user record
func (b *Broker) GetUser(ctx context.Context, adminToken, userID string) (user users.IdPUser, err error) {
	defer func() { b.metrics.UpstreamCall("admin_get_user", err) }()

	req, err := b.adminRequest(ctx, http.MethodGet, userID, adminToken, nil)
	if err != nil {
		return nil, err
	}
	status, body, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: [Broker.GetUser] %w", errors.ErrUpstreamAuth, err)
	}
	if err := validateResponseStatus("get user", status, body); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: [Broker.GetUser] decode user: %w", errors.ErrUpstreamAuth, err)
	}
	return user, nil
}

// PutUser writes the full IdP user record. The admin API replaces the record,
// so user must be the result of a read and merge.
func (b *Broker) PutUser(ctx context.Context, adminToken, userID string, user users.IdPUser) (err error) {
	defer func() { b.metrics.UpstreamCall("admin_put_user", err) }()

	payload, err := json.Marshal(user)
	if err != nil {
		return errors.Wrapf(err, "[Broker.PutUser] encode user")
	}
	req, err := b.adminRequest(ctx, http.MethodPut, userID, adminToken, payload)
	if err != nil {
		return err
	}
	status, body, err := b.do(req)
	if err != nil {
		return fmt.Errorf("%w: [Broker.PutUser] %w", errors.ErrUpstreamAuth, err)
	}
	return validateResponseStatus("put user", status, body)
}

func (b *Broker) grant(ctx context.Context, op string, form url.Values) (*Result, error) {
	form.Set(oauth2.ParamClientID, b.cfg.ClientID)
	if b.cfg.ClientSecret != "" {
		form.Set(oauth2.ParamClientSecret, b.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrapf(err, "[Broker] build %s request", op)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	correlation.Propagate(ctx, req)

	status, body, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: [Broker] %s: %w", errors.ErrUpstreamAuth, op, err)
	}
	if err := validateResponseStatus(op, status, body); err != nil {
		return nil, err
	}

	var tr oauth2.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: [Broker] %s: decode response: %w", errors.ErrUpstreamAuth, op, err)
	}
	if tr.AccessToken == "" {
		return nil, errors.Wrapf(errors.ErrUpstreamAuth, "[Broker] %s: response has no access_token", op)
	}
	return &Result{
		AccessToken:      tr.AccessToken,
		RefreshToken:     tr.RefreshToken,
		ExpiresIn:        tr.ExpiresIn,
		RefreshExpiresIn: tr.RefreshExpiresIn,
		IssuedTokenType:  tr.IssuedTokenType,
		Scope:            tr.Scope,
	}, nil
}

func (b *Broker) adminRequest(ctx context.Context, method, userID, adminToken string, payload []byte) (*http.Request, error) {
	if userID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Broker] user id is required")
	}
	endpoint := strings.TrimSuffix(b.cfg.AdminUsersEndpoint, "/") + "/" + url.PathEscape(userID)
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Broker] build %s %s", method, endpoint)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	correlation.Propagate(ctx, req)
	return req, nil
}

func (b *Broker) do(req *http.Request) (int, []byte, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// validateResponseStatus maps a non-2xx answer to an upstream auth error, keeping the
// OAuth error code when the body carries one.
func validateResponseStatus(op string, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	se := errors.NewStatusError(errors.ErrUpstreamAuth, op, statusCode)
	var oauthErr oauth2.ErrorResponse
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		se.Code = oauthErr.Error
		se.Description = oauthErr.ErrorDescription
	}
	return se
}
