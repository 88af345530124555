// Package log provides a structured logging wrapper around logrus.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger for dependency injection. Loggers derived with
// With or WithBroker share the underlying logrus instance and attach their
// fields to every entry.
type Logger struct {
	log  *logrus.Logger
	base logrus.Fields
}

// New creates a logger writing to stdout, levelled by LOG_LEVEL
func New() *Logger {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a logger writing to w
func NewWithOutput(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     w == os.Stdout,
	})

	// Default level: Info. LOG_LEVEL=trace dumps every frame in hex.
	level, ok := parseLevel(os.Getenv("LOG_LEVEL"))
	if !ok || level < logrus.ErrorLevel {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return &Logger{log: l}
}

func parseLevel(s string) (logrus.Level, bool) {
	switch s {
	case "trace":
		return logrus.TraceLevel, true
	case "debug":
		return logrus.DebugLevel, true
	case "info":
		return logrus.InfoLevel, true
	case "warn", "warning":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	case "fatal":
		return logrus.FatalLevel, true
	case "panic":
		return logrus.PanicLevel, true
	}
	return logrus.InfoLevel, false
}

// SetLevel changes the level at runtime; unknown names are ignored
func (l *Logger) SetLevel(level string) {
	if lv, ok := parseLevel(level); ok {
		l.log.SetLevel(lv)
	}
}

// GetLogrus returns the underlying logrus instance
func (l *Logger) GetLogrus() *logrus.Logger {
	return l.log
}

// With returns a logger that adds fields to every entry
func (l *Logger) With(fields logrus.Fields) *Logger {
	merged := make(logrus.Fields, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{log: l.log, base: merged}
}

// WithBroker tags entries with a broker instance id
func (l *Logger) WithBroker(id string) *Logger {
	return l.With(logrus.Fields{"broker": id})
}

func (l *Logger) entry(fields logrus.Fields) *logrus.Entry {
	e := logrus.NewEntry(l.log)
	if len(l.base) > 0 {
		e = e.WithFields(l.base)
	}
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	return e
}

// Trace logs trace-level messages
func (l *Logger) Trace(format string, v ...interface{}) {
	l.entry(nil).Tracef(format, v...)
}

// TraceWithFields logs a trace message with structured fields
func (l *Logger) TraceWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry(fields).Tracef(format, v...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, v ...interface{}) {
	l.entry(nil).Debugf(format, v...)
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry(fields).Debugf(format, v...)
}

// Info logs informational messages
func (l *Logger) Info(format string, v ...interface{}) {
	l.entry(nil).Infof(format, v...)
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry(fields).Infof(format, v...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, v ...interface{}) {
	l.entry(nil).Warnf(format, v...)
}

// WarnWithFields logs a warning with structured fields
func (l *Logger) WarnWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry(fields).Warnf(format, v...)
}

// Error logs error messages
func (l *Logger) Error(format string, v ...interface{}) {
	l.entry(nil).Errorf(format, v...)
}

// ErrorWithFields logs an error with structured fields
func (l *Logger) ErrorWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.entry(fields).Errorf(format, v...)
}

// Fatal logs an error message and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.entry(nil).Fatalf(format, v...)
}

// WithField creates an entry with one structured field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry(logrus.Fields{key: value})
}

// WithFields creates an entry with structured fields
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.entry(fields)
}
