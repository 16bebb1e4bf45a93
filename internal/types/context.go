package types

import "context"

// Actor represents the authenticated entity performing an operation.
// Session management lives outside this service; the gateway resolves the
// session and forwards the identity, which middleware stores here.
type Actor struct {
	UserID string
	Role   UserRole
}

// IsAdmin reports whether the actor may access back-office routes.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
