package service

import "context"

type actorKey struct{}

// SystemActor is recorded for operations not started by an authenticated user.
const SystemActor = "system"

func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

func ActorFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return SystemActor
}
