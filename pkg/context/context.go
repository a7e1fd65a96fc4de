// Package context carries build-session tracing values through a context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys. Unexported struct pointers prevent collisions.
var (
	sessionIDKey = &struct{}{}
	packageKey   = &struct{}{}
	operationKey = &struct{}{}
	startTimeKey = &struct{}{}
)

const (
	unknownSession   = "unknown-session"
	unknownPackage   = ""
	unknownOperation = "unknown-operation"
)

// WithSessionID adds a build session ID to the context
func WithSessionID(parent context.Context, sessionID string) context.Context {
	if sessionID == "" {
		sessionID = GenerateSessionID()
	}
	return context.WithValue(parent, sessionIDKey, sessionID)
}

// GetSessionID retrieves the build session ID from context
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		return id
	}
	return unknownSession
}

// WithPackage records the package a piece of work belongs to
func WithPackage(parent context.Context, name string) context.Context {
	return context.WithValue(parent, packageKey, name)
}

// GetPackage returns the package name stored in ctx, or "" when none is set
func GetPackage(ctx context.Context) string {
	if name, ok := ctx.Value(packageKey).(string); ok {
		return name
	}
	return unknownPackage
}

// WithOperation adds an operation name (build, watch, rollup) to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return unknownOperation
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the operation start time, falling back to now
func GetStartTime(ctx context.Context) (time.Time, bool) {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t, true
	}
	return time.Now(), false
}

// GetDuration returns the time elapsed since the start time in context.
// Zero when no start time was recorded.
func GetDuration(ctx context.Context) time.Duration {
	start, ok := GetStartTime(ctx)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// GenerateSessionID creates a new unique build session ID
func GenerateSessionID() string {
	return "build_" + uuid.New().String()
}

// NewSession returns a context for one invocation: a fresh session ID, the
// operation name and the start time.
func NewSession(parent context.Context, operation string) context.Context {
	ctx := parent
	if GetSessionID(ctx) == unknownSession {
		ctx = WithSessionID(ctx, GenerateSessionID())
	}
	ctx = WithOperation(ctx, operation)
	return WithStartTime(ctx, time.Now())
}

// TracingFields returns the tracing values for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	fields := map[string]interface{}{
		"session":   GetSessionID(ctx),
		"operation": GetOperation(ctx),
	}
	if name := GetPackage(ctx); name != "" {
		fields["package"] = name
	}
	if d := GetDuration(ctx); d > 0 {
		fields["duration_ms"] = d.Milliseconds()
	}
	return fields
}
