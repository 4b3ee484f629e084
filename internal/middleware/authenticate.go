package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Stewz00/go-auth-service/internal/model"
)

type contextKey struct{}

// SessionVerifier checks a bearer token and returns the identity it was issued for.
type SessionVerifier interface {
	VerifySessionToken(ctx context.Context, token string) (model.SessionIdentity, error)
}

// Authenticate rejects requests without a valid bearer session token and
// stores the token's identity in the request context.
func Authenticate(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}
			who, err := verifier.VerifySessionToken(r.Context(), token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, who)))
		})
	}
}

// SessionFromContext returns the identity stored by Authenticate.
func SessionFromContext(ctx context.Context) (model.SessionIdentity, bool) {
	who, ok := ctx.Value(contextKey{}).(model.SessionIdentity)
	return who, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "InvalidToken", "message": msg})
}
