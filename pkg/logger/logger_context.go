package logger

import (
	"context"

	pcontext "github.com/ivyci/enginectl/pkg/context"
)

func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if pcontext.HasDeploymentID(ctx) {
		fields = append(fields, WithField("deployment_id", pcontext.GetDeploymentID(ctx)))
	}
	if pcontext.HasOperation(ctx) {
		fields = append(fields, WithField("operation", pcontext.GetOperation(ctx)))
	}
	if d := pcontext.GetDuration(ctx); d > 0 {
		fields = append(fields, WithField("duration_ms", d.Milliseconds()))
	}
	return fields
}

// WithContext creates a logger that automatically includes context fields
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	return &contextualLogger{
		ctx:    ctx,
		logger: logger,
	}
}

// contextualLogger wraps a logger with automatic context field extraction
type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) fields(fields []Field) []Field {
	return append(contextFields(cl.ctx), fields...)
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.Info(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.Error(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.Warn(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	cl.logger.Debug(message, cl.fields(fields)...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, cl.fields(fields)...)
}

func (cl *contextualLogger) WithTarget(target string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithTarget(target),
	}
}
