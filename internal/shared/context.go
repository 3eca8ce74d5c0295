package shared

import "context"

type contextKey string

const actorKey contextKey = "actor"

// SystemActor identifies movements and comparisons created by scheduled jobs.
const SystemActor = "SYSTEM"

// ContextWithActor stores the acting user identity on the context.
func ContextWithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext returns the acting user identity, empty when absent.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return ""
}
