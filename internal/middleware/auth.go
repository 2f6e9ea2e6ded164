package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuth requires an HS256-signed bearer token on every request whose path
// is not listed in exclude. Missing, malformed, expired or wrongly signed
// tokens get a 401 JSON error.
func JWTAuth(secret string, exclude []string, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	excludeSet := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		excludeSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := excludeSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenStr == "" {
				logger.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := parser.Parse(tokenStr, func(*jwt.Token) (any, error) { return key, nil })
			if err != nil || !token.Valid {
				logger.Warn("auth: invalid token",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
