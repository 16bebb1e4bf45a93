package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"alathletics/internal/types"
)

// defaultRequestTimeout is the soft timeout applied to request contexts when
// no explicit RequestTimeout is configured.
const defaultRequestTimeout = 29 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials or session tokens.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Stripe-Signature",
}

// MountRoutes registers the global middleware chain, the /v1 group, and the
// top-level routes (health, webhooks).
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)

	for _, registrar := range s.RootRouteRegistrars {
		registrar(s.router)
	}
	s.router.Get("/health", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering rationale:
//  1. Recoverer       - outermost, catches all panics.
//  2. ContextTimeout  - soft deadline before the platform hard timeout.
//  3. RequestID       - correlation ID for tracing.
//  4. SecurityHeaders - present on every response regardless of outcome.
//  5. RequestLogger   - structured logging with redacted headers.
//  6. CORS            - browser access headers and preflight handling.
//  7. Metrics         - request latency and count recording.
//  8. Actor           - resolves gateway identity headers into the context.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(ActorMiddleware)
}

// mountV1 registers the v1 endpoint groups contributed by handler packages.
// The indirection avoids an import cycle between core and handlers.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context. Downstream
// handlers receive a cancelled context once the deadline passes.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs. An incoming X-Request-Id header is reused,
// otherwise a new random ID is generated. The ID is stored in the context
// and echoed in the X-Request-Id response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a cryptographically random 32-char hex string.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unheard of; still return a
		// non-empty ID for correlation.
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// Gateway identity headers. Requests arrive behind the platform's auth proxy,
// which strips any client-supplied values and injects the authenticated
// identity.
const (
	headerGatewayUserID = "X-Auth-User-Id"
	headerGatewayRole   = "X-Auth-Role"
)

// ActorMiddleware reads the authenticated identity from the gateway headers
// and stores an Actor in the request context. Requests without an identity
// pass through unauthenticated; handlers that need an actor reject them via
// RequireActor.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerGatewayUserID)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		role := types.UserRole(r.Header.Get(headerGatewayRole))
		if role != types.RoleAdmin {
			role = types.RoleClient
		}

		ctx := types.WithActor(r.Context(), types.Actor{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor extracts the Actor from the context or writes a 401.
// Returns false when the response has already been written.
func RequireActor(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		Error(w, r, types.NewAppError(types.ErrCodeAuthRequired, "authentication required", nil))
		return types.Actor{}, false
	}
	return actor, true
}

// RequireAdmin extracts the Actor and enforces the admin role.
func RequireAdmin(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := RequireActor(w, r)
	if !ok {
		return types.Actor{}, false
	}
	if !actor.IsAdmin() {
		Error(w, r, types.NewAppError(types.ErrCodePermissionRole, "admin role required", nil))
		return types.Actor{}, false
	}
	return actor, true
}
