package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

// APIKeyHeader is accepted as an alternative to a bearer token.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth guards a route group with one shared key, presented either as
// "Authorization: Bearer <key>" or in the X-API-Key header.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(apiKey))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, msg := presentedKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			got := sha256.Sum256([]byte(key))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// presentedKey extracts the caller's key. On failure it returns "" and the
// reason to report.
func presentedKey(r *http.Request) (string, string) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key, ""
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing API key"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", "invalid authorization header format"
	}
	return strings.TrimSpace(token), ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
