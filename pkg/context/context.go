// Package context carries deployment tracing values through context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys. Unexported struct pointers prevent key collisions.
var (
	deploymentIDKey = &struct{}{}
	operationKey    = &struct{}{}
	startTimeKey    = &struct{}{}
)

const (
	unknownDeployment = "unknown-deployment"
	unknownOperation  = "unknown-operation"
)

// WithDeploymentID adds a deployment ID to the context, generating one when empty
func WithDeploymentID(parent context.Context, id string) context.Context {
	if id == "" {
		id = NewDeploymentID()
	}
	return context.WithValue(parent, deploymentIDKey, id)
}

// GetDeploymentID retrieves the deployment ID from context
func GetDeploymentID(ctx context.Context) string {
	if id, ok := ctx.Value(deploymentIDKey).(string); ok && id != "" {
		return id
	}
	return unknownDeployment
}

// HasDeploymentID reports whether the context carries a deployment ID
func HasDeploymentID(ctx context.Context) bool {
	return GetDeploymentID(ctx) != unknownDeployment
}

// WithOperation adds an operation name ("deploy", "engine.start", ...) to the context
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

// HasOperation reports whether the context carries an operation name
func HasOperation(ctx context.Context) bool {
	return GetOperation(ctx) != unknownOperation
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetDuration returns the time elapsed since the start time stored in ctx, or 0
func GetDuration(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// NewDeploymentID creates a new unique deployment ID
func NewDeploymentID() string {
	return "dep_" + uuid.NewString()
}

// Enrich adds a deployment ID (if missing), the operation and a start time
func Enrich(parent context.Context, operation string) context.Context {
	ctx := parent
	if !HasDeploymentID(ctx) {
		ctx = WithDeploymentID(ctx, "")
	}
	ctx = WithOperation(ctx, operation)
	return WithStartTime(ctx, time.Now())
}
