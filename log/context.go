package log

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey int

const sessionIDKey ctxKey = iota

// WithSessionID returns a context which knows its session ID.
// A session is one create or sync run, from opening the logs until they are released.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithNewSessionID does the same thing as WithSessionID but generates a new, random id.
func WithNewSessionID(ctx context.Context) context.Context {
	return WithSessionID(ctx, uuid.NewString())
}

// ExtractSessionID extracts the session id from a context object.
func ExtractSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}

// ZContext returns a field with the session id from ctx, or a no-op field.
func ZContext(ctx context.Context) zap.Field {
	if id, ok := ExtractSessionID(ctx); ok {
		return zap.String("sessionId", id)
	}
	return zap.Skip()
}
