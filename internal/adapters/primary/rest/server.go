package rest

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

type Options struct {
	AllowedOrigins []string
}

// NewHandler monte les routes puis la chaîne de middlewares :
// auth (injecte le profile_id), CORS, OTEL HTTP (racine).
func NewHandler(feeds ports.FeedService, posts ports.PostService, resolver ports.IdentityResolver, opts Options) http.Handler {
	h := &handlers{feeds: feeds, posts: posts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /v1/feed", h.getFeed)
	mux.HandleFunc("GET /v1/posts/{id}", h.getPost)
	mux.HandleFunc("POST /v1/posts", h.createPost)
	mux.HandleFunc("GET /v1/notifications", h.listNotifications)
	mux.HandleFunc("GET /v1/profiles/{id}/posts", h.getProfilePosts)
	mux.HandleFunc("GET /v1/profiles/{id}/followers", h.listConnections(domain.Followers))
	mux.HandleFunc("GET /v1/profiles/{id}/following", h.listConnections(domain.Following))

	var handler http.Handler = mux

	// A. Auth
	handler = AuthMiddleware(resolver)(handler)

	// B. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	})
	handler = c.Handler(handler)

	// C. OTEL HTTP
	return otelhttp.NewHandler(handler, "feed-http", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))
}
