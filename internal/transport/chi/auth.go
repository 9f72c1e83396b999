package chi

import (
	"net/http"
	"strings"
)

// Liveness and scrape endpoints stay reachable without credentials.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware validates Bearer tokens against the configured
// API keys. With no keys configured the middleware is a pass-through,
// which is the local development mode.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	valid := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			valid[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(valid) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			switch {
			case header == "":
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
			case !found:
				writeError(w, http.StatusUnauthorized,
					codeUnauthorized, "authorization header must use Bearer scheme")
			default:
				if _, ok := valid[token]; !ok {
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
					return
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}
