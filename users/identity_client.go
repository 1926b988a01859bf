package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/correlation"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	bootstrapPath = "/api/identity/users/bootstrap"
	selfPath      = "/api/identity/users/self"

	defaultHTTPTimeout  = 30 * time.Second
	maxResponseBodySize = 1 << 20
)

// BootstrapResult is what the identity service answered to a bootstrap call.
// UserID is empty when the service replied without a body.
type BootstrapResult struct {
	UserID string `json:"userId"`
}

// IdentityClient talks to the identity service through the internal gateway.
type IdentityClient struct {
	baseURI    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

type IdentityClientOption func(*IdentityClient)

func WithHTTPClient(c *http.Client) IdentityClientOption {
	return func(ic *IdentityClient) {
		ic.httpClient = c
	}
}

func WithMetrics(m *metrics.Metrics) IdentityClientOption {
	return func(ic *IdentityClient) {
		ic.metrics = m
	}
}

// NewIdentityClient builds a client for the identity service reachable at baseURI
func NewIdentityClient(baseURI string, options ...IdentityClientOption) (*IdentityClient, error) {
	if baseURI == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewIdentityClient] base URI is required")
	}
	ic := &IdentityClient{
		baseURI:    baseURI,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range options {
		opt(ic)
	}
	return ic, nil
}

// BootstrapUser registers the user behind accessToken with the identity service.
// Any non-2xx answer is reported as errors.ErrBootstrap.
func (ic *IdentityClient) BootstrapUser(ctx context.Context, accessToken string) (result *BootstrapResult, err error) {
	defer func() { ic.metrics.UpstreamCall("bootstrap", err) }()

	req, err := ic.newRequest(ctx, http.MethodPost, bootstrapPath, accessToken)
	if err != nil {
		return nil, err
	}

	status, body, err := ic.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: [IdentityClient.BootstrapUser] %w", errors.ErrBootstrap, err)
	}
	if status < 200 || status >= 300 {
		se := errors.NewStatusError(errors.ErrBootstrap, "bootstrap", status)
		se.Description = truncate(body)
		return nil, se
	}

	result = &BootstrapResult{}
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("%w: [IdentityClient.BootstrapUser] decode response: %w", errors.ErrBootstrap, err)
	}
	log.Debug().Str("user_id", result.UserID).Msg("bootstrap returned user id")
	return result, nil
}

// DeleteSelf asks the identity service to delete the user behind accessToken.
func (ic *IdentityClient) DeleteSelf(ctx context.Context, accessToken string) (err error) {
	defer func() { ic.metrics.UpstreamCall("delete_self", err) }()

	req, err := ic.newRequest(ctx, http.MethodDelete, selfPath, accessToken)
	if err != nil {
		return err
	}
	status, body, err := ic.do(req)
	if err != nil {
		return errors.Wrapf(err, "[IdentityClient.DeleteSelf] request failed")
	}
	if status < 200 || status >= 300 {
		se := errors.NewStatusError(errors.ErrInternal, "delete self", status)
		se.Description = truncate(body)
		return se
	}
	return nil
}

func (ic *IdentityClient) newRequest(ctx context.Context, method, path, accessToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, ic.baseURI+path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "[IdentityClient] build %s %s", method, path)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	correlation.Propagate(ctx, req)
	return req, nil
}

func (ic *IdentityClient) do(req *http.Request) (int, []byte, error) {
	resp, err := ic.httpClient.Do(req)
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

func truncate(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
