package token_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/jrsteele09/go-auth-gateway/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "gateway"
	testClientSecret = "gateway-secret"
	testRefreshToken = "refresh-1"
	testAccessToken  = "access-1"
	testAdminToken   = "admin-1"
	testUserID       = "kc-123"
)

// testIdP is a minimal token endpoint plus admin API
type testIdP struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	forms    []map[string]string
	tokenFn  func(w http.ResponseWriter, form map[string]string)
	user     users.IdPUser
	userPuts []users.IdPUser
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()
	idp := &testIdP{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		idp.mu.Lock()
		idp.forms = append(idp.forms, form)
		fn := idp.tokenFn
		idp.mu.Unlock()
		fn(w, form)
	})
	mux.HandleFunc("GET /admin/realms/test/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testAdminToken, r.Header.Get("Authorization"))
		idp.mu.Lock()
		defer idp.mu.Unlock()
		if idp.user == nil || r.PathValue("id") != idp.user.ID() {
			http.Error(w, `{"error":"User not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(idp.user)
	})
	mux.HandleFunc("PUT /admin/realms/test/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var u users.IdPUser
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&u))
		idp.mu.Lock()
		idp.userPuts = append(idp.userPuts, u)
		idp.user = u
		idp.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *testIdP) respondJSON(status int, body string) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	idp.tokenFn = func(w http.ResponseWriter, _ map[string]string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (idp *testIdP) lastForm() map[string]string {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	require.NotEmpty(idp.t, idp.forms)
	return idp.forms[len(idp.forms)-1]
}

func (idp *testIdP) broker(t *testing.T) *token.Broker {
	t.Helper()
	b, err := token.NewBroker(token.BrokerConfig{
		TokenEndpoint:      idp.server.URL + "/token",
		AdminUsersEndpoint: idp.server.URL + "/admin/realms/test/users",
		ClientID:           testClientID,
		ClientSecret:       testClientSecret,
		ExchangeAudience:   "downstream-api",
	}, token.WithHTTPClient(idp.server.Client()))
	require.NoError(t, err)
	return b
}

// TestRefreshAccessToken_Rotated tests a refresh where the IdP rotates the refresh token
func TestRefreshAccessToken_Rotated(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)
	idp.respondJSON(http.StatusOK, `{"access_token":"A2","refresh_token":"R2","expires_in":300,"refresh_expires_in":1800,"token_type":"Bearer"}`)

	res, err := idp.broker(t).RefreshAccessToken(context.Background(), testRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "A2", res.AccessToken)
	require.Equal(t, "R2", res.RefreshToken)
	require.Equal(t, int64(300), res.ExpiresIn)
	require.Equal(t, int64(1800), res.RefreshExpiresIn)

	form := idp.lastForm()
	require.Equal(t, "refresh_token", form["grant_type"])
	require.Equal(t, testRefreshToken, form["refresh_token"])
	require.Equal(t, testClientID, form["client_id"])
	require.Equal(t, testClientSecret, form["client_secret"])
}

// TestRefreshAccessToken_NotRotated tests that a blank or missing refresh token keeps the input
func TestRefreshAccessToken_NotRotated(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"missing": `{"access_token":"A2","expires_in":300}`,
		"blank":   `{"access_token":"A2","refresh_token":"  ","expires_in":300}`,
	} {
		t.Run(name, func(t *testing.T) {
			idp := newTestIdP(t)
			idp.respondJSON(http.StatusOK, body)

			res, err := idp.broker(t).RefreshAccessToken(context.Background(), testRefreshToken)
			require.NoError(t, err)
			require.Equal(t, testRefreshToken, res.RefreshToken)
		})
	}
}

// TestRefreshAccessToken_Rejected tests that an IdP rejection is an upstream auth error
func TestRefreshAccessToken_Rejected(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)
	idp.respondJSON(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Token is not active"}`)

	_, err := idp.broker(t).RefreshAccessToken(context.Background(), testRefreshToken)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrUpstreamAuth))

	var se *errors.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Equal(t, "invalid_grant", se.Code)

	// terminal: exactly one call
	idp.mu.Lock()
	defer idp.mu.Unlock()
	require.Len(t, idp.forms, 1)
}

// TestRefreshAccessToken_NoAccessToken tests a 2xx answer without a token
func TestRefreshAccessToken_NoAccessToken(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)
	idp.respondJSON(http.StatusOK, `{}`)

	_, err := idp.broker(t).RefreshAccessToken(context.Background(), testRefreshToken)
	require.ErrorIs(t, err, errors.ErrUpstreamAuth)
}

// TestExchangeAccessToken tests the RFC 8693 request shape
func TestExchangeAccessToken(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)
	idp.respondJSON(http.StatusOK, `{"access_token":"X1","issued_token_type":"urn:ietf:params:oauth:token-type:access_token","expires_in":60}`)

	res, err := idp.broker(t).ExchangeAccessToken(context.Background(), testAccessToken)
	require.NoError(t, err)
	require.Equal(t, "X1", res.AccessToken)
	require.Equal(t, "urn:ietf:params:oauth:token-type:access_token", res.IssuedTokenType)

	form := idp.lastForm()
	require.Equal(t, "urn:ietf:params:oauth:grant-type:token-exchange", form["grant_type"])
	require.Equal(t, testAccessToken, form["subject_token"])
	require.Equal(t, "urn:ietf:params:oauth:token-type:access_token", form["subject_token_type"])
	require.Equal(t, "urn:ietf:params:oauth:token-type:access_token", form["requested_token_type"])
	require.Equal(t, "downstream-api", form["audience"])
}

// TestAdminToken tests the client credentials grant
func TestAdminToken(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)
	idp.respondJSON(http.StatusOK, `{"access_token":"admin-1","token_type":"Bearer","expires_in":60}`)

	tok, err := idp.broker(t).AdminToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, testAdminToken, tok)

	form := idp.lastForm()
	require.Equal(t, "client_credentials", form["grant_type"])
	require.Equal(t, testClientID, form["client_id"])
}

// TestAdminToken_Rejected tests that a failed client credentials grant is an upstream auth error
func TestAdminToken_Rejected(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)
	idp.respondJSON(http.StatusUnauthorized, `{"error":"unauthorized_client"}`)

	_, err := idp.broker(t).AdminToken(context.Background())
	require.ErrorIs(t, err, errors.ErrUpstreamAuth)
	require.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
}

// TestGetPutUser tests a read-modify-write of the IdP user record
func TestGetPutUser(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)
	idp.user = users.IdPUser{
		"id":         testUserID,
		"username":   "jane@example.com",
		"enabled":    true,
		"attributes": map[string]any{"locale": []any{"en"}},
	}
	b := idp.broker(t)

	u, err := b.GetUser(context.Background(), testAdminToken, testUserID)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", u.Username())

	require.NoError(t, b.PutUser(context.Background(), testAdminToken, testUserID, u.WithAttribute(users.UserIDAttribute, "u-42")))

	idp.mu.Lock()
	defer idp.mu.Unlock()
	require.Len(t, idp.userPuts, 1)
	require.True(t, idp.userPuts[0].HasAttributeValue(users.UserIDAttribute, "u-42"))
	require.True(t, idp.userPuts[0].HasAttributeValue("locale", "en"))
	require.Equal(t, true, idp.userPuts[0]["enabled"])
}

// TestGetUser_NotFound tests the error mapping for a missing user
func TestGetUser_NotFound(t *testing.T) {
	t.Parallel()
	idp := newTestIdP(t)

	_, err := idp.broker(t).GetUser(context.Background(), testAdminToken, "nobody")
	require.ErrorIs(t, err, errors.ErrUpstreamAuth)
	require.Equal(t, http.StatusNotFound, errors.StatusCode(err))
}

// TestResult_ExpiresAt tests absolute expiry arithmetic and the default lifetime
func TestResult_ExpiresAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, now.Add(300*time.Second), (&token.Result{ExpiresIn: 300}).ExpiresAt(now))
	require.Equal(t, now.Add(900*time.Second), (&token.Result{}).ExpiresAt(now))
}

// TestResult_String tests that tokens are redacted
func TestResult_String(t *testing.T) {
	s := (&token.Result{AccessToken: "secret-a", ExpiresIn: 5}).String()
	require.NotContains(t, s, "secret-a")
	require.Contains(t, s, "[REDACTED]")
	require.Contains(t, s, "<empty>")
}

// TestNewBroker_Validation tests required configuration
func TestNewBroker_Validation(t *testing.T) {
	_, err := token.NewBroker(token.BrokerConfig{})
	require.ErrorIs(t, err, errors.ErrConfiguration)
}
