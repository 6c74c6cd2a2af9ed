package shared

import "context"

type contextKey string

const actorKey contextKey = "actor"

// ContextWithActor stores the authenticated user id on the context.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorFromContext returns the authenticated user id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey).(int64)
	return id
}
