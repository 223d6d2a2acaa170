// Package chi serves the retrieval API over HTTP.
package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// publicPaths answer without credentials so probes and scrapers need no key.
var publicPaths = []string{"/health", "/metrics"}

// RequireAPIKey rejects requests whose Authorization header does not carry
// one of keys as a bearer token. Blank keys are ignored; with none left the
// middleware is a no-op.
func RequireAPIKey(keys []string) func(http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem == "" && !anyKeyEquals(accepted, token) {
				problem = "invalid api key"
			}
			if problem != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="socretrieve"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, problem)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublic(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// bearerToken extracts the credential. The scheme name is case-insensitive.
// A non-empty problem describes why the header was rejected.
func bearerToken(header string) (token, problem string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, cred, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	return strings.TrimSpace(cred), ""
}

// anyKeyEquals checks every key so timing does not reveal which one matched.
func anyKeyEquals(keys [][]byte, token string) bool {
	t := []byte(token)
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, t)
	}
	return found == 1
}
