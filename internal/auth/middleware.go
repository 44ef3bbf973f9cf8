package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// CookieName is the session cookie set on sign-in and read on every request.
const CookieName = "session"

// contextKey is unexported so no other package can read or overwrite the
// identity stored in a request context.
type contextKey struct{}

var identityKey contextKey

// Resolver turns a request into an optional Identity.
// ok is false for anonymous requests and for requests with a bad token;
// both are treated the same way.
type Resolver interface {
	Resolve(r *http.Request) (id Identity, ok bool)
}

// Resolve reads the session token from the "session" cookie, falling back
// to an "Authorization: Bearer <token>" header.
func (s *TokenService) Resolve(r *http.Request) (Identity, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		return Identity{}, false
	}
	id, err := s.Validate(token)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > len("Bearer ") && strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

// Session resolves the caller's identity and stores it in the request
// context. It never rejects a request: routes disagree on what a missing
// session means (UNAUTHORIZED vs AUTHENTICATION_REQUIRED vs "fine"), so
// that decision stays in the handlers.
func Session(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := resolver.Resolve(r); ok {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a resolved identity with a JSON 401.
// It must run after Session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller's identity, if the request has one.
//
// Usage in handlers:
//
//	id, ok := auth.IdentityFromContext(r.Context())
//	if !ok {
//	    // anonymous caller
//	}
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}
