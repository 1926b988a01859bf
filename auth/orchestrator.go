package auth

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-auth-gateway/clients"
	"github.com/jrsteele09/go-auth-gateway/internal/config"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	"github.com/jrsteele09/go-auth-gateway/oauth2"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/jrsteele09/go-auth-gateway/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout           = 10 * time.Second
	defaultBackgroundTimeout = 2 * time.Minute
	defaultCorrelationTries  = 4
)

var errLostUpdate = pkgerrors.New("userId attribute was overwritten")

// TokenBroker is the subset of the IdP client the orchestrator needs
type TokenBroker interface {
	users.AdminRepo
	AdminToken(ctx context.Context) (string, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Result, error)
	ExchangeAccessToken(ctx context.Context, subjectToken string) (*token.Result, error)
}

// Bootstrapper registers a freshly logged in user with the identity service
type Bootstrapper interface {
	BootstrapUser(ctx context.Context, accessToken string) (*users.BootstrapResult, error)
}

// Orchestrator runs the post-login chain: load the authorized client, bootstrap
// the user, optionally correlate the identity service user id into the IdP
// record, refresh the tokens and persist them. Whatever happens, the pending
// redirect is resumed exactly once.
type Orchestrator struct {
	registrationID        string
	broker                TokenBroker
	bootstrapper          Bootstrapper
	clients               clients.Repo
	mode                  config.BootstrapMode
	timeout               time.Duration
	backgroundTimeout     time.Duration
	exchange              bool
	concurrentCorrelation bool
	correlationTries      uint
	metrics               *metrics.Metrics
	nowTime               func() time.Time
}

// OrchestratorOption defines a function type to modify the Orchestrator instance.
type OrchestratorOption func(*Orchestrator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.nowTime = nowFunc
	}
}

// WithTimeout bounds how long the redirect waits for the chain
func WithTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBackgroundTimeout bounds how long a chain that outlived the redirect may keep running
func WithBackgroundTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.backgroundTimeout = d
		}
	}
}

func WithBootstrapMode(mode config.BootstrapMode) OrchestratorOption {
	return func(o *Orchestrator) {
		o.mode = mode
	}
}

// WithTokenExchange swaps the refreshed access token for a downstream audience token before it is stored
func WithTokenExchange(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.exchange = enabled
	}
}

// WithConcurrentCorrelation runs the IdP correlation alongside the token step.
// The stored client is still written only after both finish.
func WithConcurrentCorrelation(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.concurrentCorrelation = enabled
	}
}

func WithCorrelationTries(n uint) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.correlationTries = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates the post-login orchestrator for one client registration.
func NewOrchestrator(
	registrationID string,
	broker TokenBroker,
	bootstrapper Bootstrapper,
	clientRepo clients.Repo,
	options ...OrchestratorOption,
) (*Orchestrator, error) {
	if registrationID == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewOrchestrator] registration id is required")
	}
	if broker == nil || bootstrapper == nil || clientRepo == nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewOrchestrator] broker, bootstrapper and client repo are required")
	}
	o := &Orchestrator{
		registrationID:    registrationID,
		broker:            broker,
		bootstrapper:      bootstrapper,
		clients:           clientRepo,
		mode:              config.BootstrapModeRefresh,
		timeout:           defaultTimeout,
		backgroundTimeout: defaultBackgroundTimeout,
		correlationTries:  defaultCorrelationTries,
		nowTime:           time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	if !o.mode.Valid() {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewOrchestrator] unknown bootstrap mode %q", o.mode)
	}
	return o, nil
}

// OnAuthenticationSuccess is the post-authentication hook. It runs the chain with a
// bounded wait and then calls resume. resume is always called exactly once, on the
// calling goroutine. If the wait runs out the chain keeps going in the background
// and the run reports the degraded state.
func (o *Orchestrator) OnAuthenticationSuccess(ctx context.Context, authn clients.Authentication, resume func()) Outcome {
	started := o.nowTime()
	logger := log.With().
		Str("principal", authn.Principal).
		Str("session_id", authn.SessionID).
		Str("bootstrap_mode", string(o.mode)).
		Logger()

	// downstream calls are side effecting, so they are not cancelled with the request
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.backgroundTimeout)
	done := make(chan Outcome, 1)
	go func() {
		defer cancel()
		done <- o.run(logger.WithContext(runCtx), authn)
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	var outcome Outcome
	select {
	case outcome = <-done:
	case <-timer.C:
		outcome = Outcome{State: StateRedirectedWithStaleTokens, Reason: metrics.OutcomeTimedOut, TimedOut: true,
			Err: pkgerrors.Errorf("post-login chain did not finish within %s", o.timeout)}
		logger.Warn().Dur("timeout", o.timeout).Msg("post-login chain timed out, redirecting with current tokens")
	case <-ctx.Done():
		outcome = Outcome{State: StateRedirectedWithStaleTokens, Reason: metrics.OutcomeTimedOut, TimedOut: true, Err: ctx.Err()}
		logger.Warn().Err(ctx.Err()).Msg("request ended before post-login chain finished")
	}

	o.metrics.Orchestration(outcome.Reason, o.nowTime().Sub(started).Seconds())
	if outcome.Err != nil && !outcome.TimedOut {
		logger.Err(outcome.Err).Str("state", string(outcome.State)).Msg("post-login chain degraded")
	}
	resume()
	return outcome
}

// run is the chain itself. It never panics out; a panic is turned into the degraded state.
func (o *Orchestrator) run(ctx context.Context, authn clients.Authentication) (outcome Outcome) {
	logger := zerolog.Ctx(ctx)
	state := StateStart
	defer func() {
		if r := recover(); r != nil {
			outcome = degraded(pkgerrors.Errorf("[Orchestrator.run] panic in state %s: %v", state, r))
		}
	}()

	client, err := o.clients.Load(ctx, o.registrationID, authn)
	if err != nil {
		return degraded(pkgerrors.Wrap(err, "[Orchestrator.run] clients.Load"))
	}
	if client == nil {
		logger.Debug().Msg("no authorized client for login, passing through")
		return Outcome{State: StateRedirected, Reason: metrics.OutcomeNoClient}
	}
	state = StateClientLoaded

	boot, err := o.bootstrapper.BootstrapUser(ctx, client.AccessToken.Value)
	if err != nil {
		return degraded(pkgerrors.Wrap(err, "[Orchestrator.run] BootstrapUser"))
	}
	if boot == nil {
		boot = &users.BootstrapResult{}
	}
	state = StateBootstrapped
	logger.Debug().Str("state", string(state)).Bool("user_id_returned", boot.UserID != "").Msg("user bootstrapped")

	correlate := func(ctx context.Context) {
		if o.mode != config.BootstrapModeCorrelate {
			return
		}
		if boot.UserID == "" || authn.Subject == "" {
			logger.Warn().Bool("has_user_id", boot.UserID != "").Bool("has_subject", authn.Subject != "").
				Msg("skipping userId correlation")
			return
		}
		if err := o.correlateUserID(ctx, authn.Subject, boot.UserID); err != nil {
			logger.Err(err).Str("user_id", boot.UserID).Msg("userId correlation failed")
			return
		}
		logger.Info().Str("user_id", boot.UserID).Str("state", string(StateUserIDCorrelated)).Msg("userId correlated")
	}

	var updated *clients.AuthorizedClient
	if o.concurrentCorrelation {
		// a failed refresh must not cancel the correlation, so no shared group context
		var g errgroup.Group
		g.Go(func() error {
			correlate(ctx)
			return nil
		})
		g.Go(func() error {
			var err error
			updated, err = o.renewTokens(ctx, client)
			return err
		})
		err = g.Wait()
	} else {
		correlate(ctx)
		updated, err = o.renewTokens(ctx, client)
	}
	if err != nil {
		return degraded(err)
	}
	if updated == nil {
		logger.Warn().Msg("authorized client has no refresh token, keeping issued tokens")
		return Outcome{State: StateRedirected, Reason: metrics.OutcomeRedirected}
	}
	state = StateTokenRefreshed

	if err := o.clients.Save(ctx, updated, authn); err != nil {
		return degraded(pkgerrors.Wrap(err, "[Orchestrator.run] clients.Save"))
	}
	logger.Info().Time("expires_at", updated.AccessToken.ExpiresAt).Msg("refreshed tokens stored")
	return Outcome{State: StateRedirected, Reason: metrics.OutcomeRedirected}
}

// renewTokens refreshes (and optionally exchanges) the client's tokens. It returns
// nil, nil when there is nothing to renew with.
func (o *Orchestrator) renewTokens(ctx context.Context, client *clients.AuthorizedClient) (*clients.AuthorizedClient, error) {
	updated := client.Clone()
	renewed := false

	if client.HasRefreshToken() {
		res, err := o.broker.RefreshAccessToken(ctx, client.RefreshToken.Value)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[Orchestrator.renewTokens] RefreshAccessToken")
		}
		o.applyResult(updated, res)
		renewed = true
	}

	if o.exchange {
		res, err := o.broker.ExchangeAccessToken(ctx, updated.AccessToken.Value)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[Orchestrator.renewTokens] ExchangeAccessToken")
		}
		o.applyResult(updated, res)
		renewed = true
	}

	if !renewed {
		return nil, nil
	}
	return updated, nil
}

// applyResult writes a grant result onto c. Scopes are kept from the previous access
// token since refresh responses do not reliably echo them. The refresh token changes
// only when a new non-blank value came back.
func (o *Orchestrator) applyResult(c *clients.AuthorizedClient, res *token.Result) {
	now := o.nowTime()
	c.AccessToken = clients.AccessToken{
		Value:     res.AccessToken,
		Type:      oauth2.BearerTokenType,
		IssuedAt:  now,
		ExpiresAt: res.ExpiresAt(now),
		Scopes:    c.AccessToken.Scopes,
	}
	rotated := strings.TrimSpace(res.RefreshToken)
	if rotated != "" && (c.RefreshToken == nil || rotated != c.RefreshToken.Value) {
		c.RefreshToken = &clients.RefreshToken{Value: rotated, IssuedAt: now}
	}
}

// correlateUserID stores userID on the IdP user identified by subject. The admin API
// only supports full record writes, so the record is read, merged and written back,
// then read again to detect a concurrent writer that replaced it.
func (o *Orchestrator) correlateUserID(ctx context.Context, subject, userID string) error {
	adminToken, err := o.broker.AdminToken(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "[Orchestrator.correlateUserID] AdminToken")
	}

	operation := func() (struct{}, error) {
		user, err := o.broker.GetUser(ctx, adminToken, subject)
		if err != nil {
			return struct{}{}, retryable(err)
		}
		if user.HasAttributeValue(users.UserIDAttribute, userID) {
			return struct{}{}, nil
		}
		if err := o.broker.PutUser(ctx, adminToken, subject, user.WithAttribute(users.UserIDAttribute, userID)); err != nil {
			return struct{}{}, retryable(err)
		}
		check, err := o.broker.GetUser(ctx, adminToken, subject)
		if err != nil {
			return struct{}{}, retryable(err)
		}
		if !check.HasAttributeValue(users.UserIDAttribute, userID) {
			return struct{}{}, errLostUpdate
		}
		return struct{}{}, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 50 * time.Millisecond
	expBackoff.MaxInterval = time.Second
	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(o.correlationTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			zerolog.Ctx(ctx).Debug().Err(err).Dur("retry_in", d).Msg("retrying userId correlation")
		}),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "[Orchestrator.correlateUserID]")
	}
	return nil
}

// retryable marks client errors as permanent, except conflicts and throttling
func retryable(err error) error {
	status := errors.StatusCode(err)
	if status >= 400 && status < 500 && status != 409 && status != 429 {
		return backoff.Permanent(err)
	}
	return err
}

func degraded(err error) Outcome {
	return Outcome{State: StateRedirectedWithStaleTokens, Reason: metrics.OutcomeStaleTokens, Err: err}
}
