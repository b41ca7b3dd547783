package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var profileCtxKey = &contextKey{"profile_id"}

// AuthMiddleware décode le header Authorization. Sans header (ou sans resolver
// configuré) la requête reste anonyme ; un token invalide est rejeté en 401.
func AuthMiddleware(resolver ports.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || resolver == nil {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				writeError(w, r, errInvalidToken)
				return
			}

			profileID, err := resolver.Resolve(r.Context(), tokenStr)
			if err != nil {
				slog.DebugContext(r.Context(), "Token rejected", "error", err)
				writeError(w, r, errInvalidToken)
				return
			}

			ctx := WithProfile(r.Context(), profileID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithProfile(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, profileCtxKey, profileID)
}

// ForContext retourne le profile_id de l'appelant, vide si anonyme.
func ForContext(ctx context.Context) string {
	raw, _ := ctx.Value(profileCtxKey).(string)
	return raw
}

var errInvalidToken = &apiError{status: http.StatusUnauthorized, code: CodeUnauthenticated, msg: "invalid or expired token"}

// requireProfile is used by endpoints that make no sense anonymously.
func requireProfile(ctx context.Context) (string, error) {
	id := ForContext(ctx)
	if id == "" {
		return "", domain.ErrViewerRequired
	}
	return id, nil
}
