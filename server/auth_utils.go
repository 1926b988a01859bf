package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

const contentTypeJSON = "application/json; charset=utf-8"

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetSessionMaxInactive().Seconds()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// safeReturnURL only lets local absolute paths through so the login flow cannot be
// used as an open redirect
func safeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return raw
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSONError writes an OAuth2 style error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

// writeError maps err onto a status. Downstream status errors keep their 4xx status;
// other downstream failures are a bad gateway.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrSessionNotFound), errors.Is(err, errors.ErrNotFound):
		writeJSONError(w, "not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, errors.ErrInvalidRequest), errors.Is(err, errors.ErrInvalidToken):
		writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, errors.ErrClientNotFound):
		writeJSONError(w, "unauthorized", err.Error(), http.StatusUnauthorized)
	case errors.Is(err, errors.ErrForbidden):
		writeJSONError(w, "forbidden", err.Error(), http.StatusForbidden)
	default:
		status := errors.StatusCode(err)
		switch {
		case status >= 400 && status < 500:
		case status != 0:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
		writeJSONError(w, "request_failed", err.Error(), status)
	}
}
