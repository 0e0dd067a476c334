package domain

import "context"

// SystemActor is recorded for actions taken without an authenticated user.
const SystemActor = "system"

type actorContextKey struct{}

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting user, or SystemActor when none is set.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
