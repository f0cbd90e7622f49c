package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const userIDKey ctxKey = iota

// Authenticator accepts HS256 bearer tokens whose subject is the user id.
// Issuing those tokens belongs to the identity provider, not this service.
type Authenticator struct {
	Secret []byte
	Log    *slog.Logger
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.Secret) == 0 {
			writeError(w, r, a.Log, apperr.ServiceMisconfigured("auth misconfigured"))
			return
		}
		raw, ok := bearer(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, a.Log, apperr.NotAuthenticated("missing bearer token"))
			return
		}
		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims,
			func(*jwt.Token) (interface{}, error) { return a.Secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		)
		if err != nil || claims.Subject == "" {
			writeError(w, r, a.Log, apperr.NotAuthenticated("invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
	})
}

func bearer(h string) (string, bool) {
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// UserID returns the authenticated user id, or "" outside the auth middleware.
func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey).(string)
	return uid
}
