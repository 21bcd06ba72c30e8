package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/keen-violet-ibis/rfphub/internal/api/auth"
	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// Context keys for storing request identity.
type contextKey string

const (
	principalKey contextKey = "principal"
	claimsKey    contextKey = "claims"
)

// jsonUnauthorized writes an unauthorized error response.
func jsonUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": "invalid or expired token",
		},
	})
}

// jsonForbidden writes a forbidden error response.
func jsonForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "FORBIDDEN",
			"message": "access denied",
		},
	})
}

// bearerToken extracts the bearer token from the Authorization header,
// or "" when absent or malformed.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// resolve validates the token and materializes the acting principal.
// This is the single place per request where role facts are established;
// handlers and policy rules only ever see the resulting snapshot.
func resolve(r *http.Request, jwtService *auth.JWTService, resolver *authz.Resolver) (context.Context, error) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		return nil, errors.New("missing bearer token")
	}

	claims, err := jwtService.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	principal, err := resolver.Resolve(r.Context(), authz.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	})
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	ctx = context.WithValue(ctx, principalKey, principal)
	ctx = context.WithValue(ctx, claimsKey, claims)
	return ctx, nil
}

// JWTAuth returns middleware that requires a valid token and resolves
// the acting principal into the request context.
func JWTAuth(jwtService *auth.JWTService, resolver *authz.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := resolve(r, jwtService, resolver)
			if err != nil {
				log.Printf("auth failed for %s: %v", r.RemoteAddr, err)
				jsonUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves a principal when a token is present but lets the
// request through anonymously otherwise. Used for routes whose policy
// rules grant public access (public RFPs and their contents).
func OptionalAuth(jwtService *auth.JWTService, resolver *authz.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearerToken(r) == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx, err := resolve(r, jwtService, resolver)
			if err != nil {
				// A presented-but-bad token is rejected, not downgraded.
				log.Printf("auth failed for %s: %v", r.RemoteAddr, err)
				jsonUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the resolved principal from context, or the
// anonymous principal when the request carried no token.
func GetPrincipal(ctx context.Context) authz.Principal {
	if v := ctx.Value(principalKey); v != nil {
		if p, ok := v.(authz.Principal); ok {
			return p
		}
	}
	return authz.Anonymous()
}

// GetUserID returns the acting user's ID from context.
func GetUserID(ctx context.Context) string {
	return GetPrincipal(ctx).ID
}

// GetRole returns the acting user's role from context.
func GetRole(ctx context.Context) models.Role {
	return GetPrincipal(ctx).Role
}

// GetClaims returns the JWT claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	if v := ctx.Value(claimsKey); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}
