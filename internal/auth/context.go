package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const callerIDKey contextKey = "callerID"

// ContextWithCallerID returns a new context that carries the authenticated caller identity.
func ContextWithCallerID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerIDKey, id)
}

// CallerIDFromContext retrieves the authenticated caller identity from the context, if any.
func CallerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(callerIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EnforceCallerScope ensures the provided caller matches the authenticated scope when present.
func EnforceCallerScope(ctx context.Context, callerID uuid.UUID) error {
	if callerID == uuid.Nil {
		return fmt.Errorf("callerId is required")
	}
	scopedID, ok := CallerIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scopedID != callerID {
		return fmt.Errorf("callerId %s does not match authenticated scope", callerID)
	}
	return nil
}
