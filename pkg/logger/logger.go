// Package logger provides badge-style build logging on top of logrus
package logger

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)

	// Transform, Pending and Watch are informational lines rendered with
	// their own badge.
	Transform(message string, fields ...Field)
	Pending(message string, fields ...Field)
	Watch(message string, fields ...Field)

	WithPackage(name string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Reserved entry keys consumed by the formatter.
const (
	kindKey    = "kind"
	packageKey = "package"
	// TargetKey selects the message color of a transform line
	TargetKey = "target"
)

// Badge kinds.
const (
	KindTransform = "transform"
	KindPending   = "pending"
	KindWatch     = "watch"
	KindSuccess   = "success"
)

type badge struct {
	icon  string
	label string
	color *color.Color
}

var badges = map[string]badge{
	KindTransform: {"🎅", "transform", color.New(color.FgBlue)},
	KindPending:   {"⏳", "pending", color.New(color.FgMagenta)},
	KindWatch:     {"👀", "watch", color.New(color.FgYellow)},
	KindSuccess:   {"✔", "success", color.New(color.FgGreen)},
}

// PackageLogger implements Logger with package awareness
type PackageLogger struct {
	logger      *logrus.Logger
	packageName string
	mu          sync.RWMutex
}

// CustomFormatter formats logs with colors and badges
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

func (f *CustomFormatter) paint(c *color.Color, s string) string {
	if f.DisableColors || c == nil {
		return s
	}
	return c.Sprint(s)
}

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(entry.Data))
	maps.Copy(data, entry.Data)

	icon, label, labelColor := f.levelBadge(entry.Level)
	message := entry.Message

	if kind, ok := data[kindKey].(string); ok {
		delete(data, kindKey)
		if b, ok := badges[kind]; ok {
			icon, label, labelColor = b.icon, b.label, b.color
		}
		if kind == KindTransform {
			// browser output is highlighted, node output keeps the badge color
			msgColor := badges[KindTransform].color
			if target, ok := data[TargetKey]; ok && fmt.Sprint(target) == "browser" {
				msgColor = color.New(color.FgYellow)
			}
			delete(data, TargetKey)
			message = f.paint(msgColor, message)
		}
	}

	prefix := ""
	if name, ok := data[packageKey]; ok {
		prefix = fmt.Sprintf("[%s] ", f.paint(color.New(color.FgCyan), fmt.Sprint(name)))
		delete(data, packageKey)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s: %s%s",
		icon,
		entry.Time.Format(f.TimestampFormat),
		f.paint(labelColor, label),
		prefix,
		message,
	)

	if len(data) > 0 {
		parts := make([]string, 0, len(data))
		for _, k := range slices.Sorted(maps.Keys(data)) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
		}
		b.WriteString(f.paint(color.New(color.FgWhite, color.Faint), " {"+strings.Join(parts, ", ")+"}"))
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func (f *CustomFormatter) levelBadge(level logrus.Level) (string, string, *color.Color) {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return "✖", "error", color.New(color.FgRed, color.Bold)
	case logrus.WarnLevel:
		return "⚠", "warning", color.New(color.FgYellow, color.Bold)
	case logrus.DebugLevel, logrus.TraceLevel:
		return "⬤", "debug", color.New(color.FgWhite, color.Faint)
	default:
		return "ℹ", "info", color.New(color.FgCyan)
	}
}

func newLogrus(logLevel string, disableColors bool) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   disableColors,
	})
	return log
}

// CreateLogger creates a logger writing to stdout and, when logFile is set,
// appending to that file as well.
func CreateLogger(logFile string, logLevel string) Logger {
	log := newLogrus(logLevel, false)
	log.SetOutput(os.Stdout)

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(io.MultiWriter(os.Stdout, file))
		}
	}

	return &PackageLogger{logger: log}
}

// CreateLoggerWithOutput creates a logger with custom output and no colors (for testing)
func CreateLoggerWithOutput(logLevel string, output io.Writer) Logger {
	log := newLogrus(logLevel, true)
	log.SetOutput(output)
	return &PackageLogger{logger: log}
}

// Discard returns a logger that drops everything
func Discard() Logger {
	return CreateLoggerWithOutput("panic", io.Discard)
}

// WithPackage creates a new logger that prefixes lines with the package name
func (l *PackageLogger) WithPackage(name string) Logger {
	return &PackageLogger{
		logger:      l.logger,
		packageName: name,
	}
}

func (l *PackageLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields, len(fields)+1)
	if l.packageName != "" {
		result[packageKey] = l.packageName
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return result
}

func (l *PackageLogger) entry(fields []Field) *logrus.Entry {
	return l.logger.WithFields(l.convertFields(fields))
}

// Info logs an info message
func (l *PackageLogger) Info(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.entry(fields).Info(message)
}

// Error logs an error message
func (l *PackageLogger) Error(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.entry(fields).Error(message)
}

// Warn logs a warning message
func (l *PackageLogger) Warn(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.entry(fields).Warn(message)
}

// Debug logs a debug message
func (l *PackageLogger) Debug(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.entry(fields).Debug(message)
}

// Success logs a success message (info level with the success badge)
func (l *PackageLogger) Success(message string, fields ...Field) {
	l.badged(KindSuccess, message, fields)
}

// Transform logs that a file was converted. Pass WithField(TargetKey, ...) to
// pick the message color.
func (l *PackageLogger) Transform(message string, fields ...Field) {
	l.badged(KindTransform, message, fields)
}

// Pending logs that work is about to start
func (l *PackageLogger) Pending(message string, fields ...Field) {
	l.badged(KindPending, message, fields)
}

// Watch logs a file-change notification
func (l *PackageLogger) Watch(message string, fields ...Field) {
	l.badged(KindWatch, message, fields)
}

func (l *PackageLogger) badged(kind, message string, fields []Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).WithField(kindKey, kind).Info(message)
}
