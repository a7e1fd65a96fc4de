package logger

import (
	"context"

	pcontext "github.com/lambGirl/umi-tools/pkg/context"
)

// LoggerContext extends the Logger interface with context-aware methods
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
}

var _ LoggerContext = (*PackageLogger)(nil)

// InfoContext logs an info message with session fields
func (l *PackageLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, append(contextFields(ctx), fields...)...)
}

// ErrorContext logs an error message with session fields
func (l *PackageLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.Error(message, append(contextFields(ctx), fields...)...)
}

// WarnContext logs a warning message with session fields
func (l *PackageLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, append(contextFields(ctx), fields...)...)
}

// DebugContext logs a debug message with session fields
func (l *PackageLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, append(contextFields(ctx), fields...)...)
}

// contextFields extracts tracing fields from ctx. The package name is left
// to WithPackage so it renders as the line prefix.
func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	for key, value := range pcontext.TracingFields(ctx) {
		if key == "package" {
			continue
		}
		fields = append(fields, WithField(key, value))
	}
	return fields
}

// WithContext returns a logger whose error, warn and debug lines carry the
// session fields of ctx, and whose package prefix follows the package in ctx.
// Badge lines stay terse.
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	if name := pcontext.GetPackage(ctx); name != "" {
		logger = logger.WithPackage(name)
	}
	return &contextualLogger{ctx: ctx, logger: logger}
}

type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.InfoContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Info(message, fields...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.ErrorContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Error(message, fields...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.WarnContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Warn(message, fields...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.DebugContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Debug(message, fields...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, fields...)
}

func (cl *contextualLogger) Transform(message string, fields ...Field) {
	cl.logger.Transform(message, fields...)
}

func (cl *contextualLogger) Pending(message string, fields ...Field) {
	cl.logger.Pending(message, fields...)
}

func (cl *contextualLogger) Watch(message string, fields ...Field) {
	cl.logger.Watch(message, fields...)
}

func (cl *contextualLogger) WithPackage(name string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithPackage(name),
	}
}
