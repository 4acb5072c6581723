package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const HeaderUserID = "X-User-Id"

// Identity resolves the signed-in user, if any. With a secret the user is the
// subject of an HS256 bearer token and a bad token is rejected; without one
// the X-User-Id header is trusted, as it is behind the gateway.
//
// Requests without credentials pass through as guests.
func Identity(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var uid string
			if len(secret) > 0 {
				token := bearerToken(r.Header.Get("Authorization"))
				if token != "" {
					sub, err := subjectFromToken(token, secret)
					if err != nil {
						WriteError(w, r, http.StatusUnauthorized, "invalid bearer token")
						return
					}
					uid = sub
				}
			} else {
				uid = strings.TrimSpace(r.Header.Get(HeaderUserID))
			}

			if uid == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserID, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func subjectFromToken(token string, secret []byte) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return sub, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
