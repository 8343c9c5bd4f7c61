// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// tokenSet holds SHA-256 digests of the accepted bearer tokens so that
// comparisons run in constant time regardless of token length.
type tokenSet [][sha256.Size]byte

func newTokenSet(tokens []string) tokenSet {
	var set tokenSet
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			set = append(set, sha256.Sum256([]byte(t)))
		}
	}
	return set
}

func (ts tokenSet) enabled() bool { return len(ts) > 0 }

// match checks every entry to avoid leaking which one matched via timing.
func (ts tokenSet) match(token string) bool {
	sum := sha256.Sum256([]byte(token))
	ok := 0
	for i := range ts {
		ok |= subtle.ConstantTimeCompare(sum[:], ts[i][:])
	}
	return ok == 1
}

// authMiddleware requires a bearer token on /api/ routes when tokens are
// configured. The event stream also accepts ?token= for EventSource clients.
func authMiddleware(tokens tokenSet, log *slog.Logger) func(http.Handler) http.Handler {
	if !tokens.enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(r)
			if !ok && r.URL.Path == EventsPath {
				token = r.URL.Query().Get("token")
				ok = token != ""
			}
			if !ok || !tokens.match(token) {
				log.Debug("rejected unauthenticated request",
					"method", r.Method,
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="sentrixa"`)
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
