// Package logger wraps logrus with the small surface the app uses.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper over a logrus logger.
type Logger struct {
	log *logrus.Logger
}

// New creates a Logger writing JSON to stdout at the given level.
// Unknown levels fall back to info.
func New(level string) *Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return &Logger{log: log}
}

// NewNop creates a Logger that discards everything. Intended for tests.
func NewNop() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{log: log}
}

// WithField returns an entry with a single field attached.
func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.log.WithField(key, value)
}

// WithFields returns an entry with the given fields attached.
func (l *Logger) WithFields(fields map[string]any) *logrus.Entry {
	return l.log.WithFields(fields)
}

// WithError returns an entry with the error attached.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.log.WithError(err)
}

func (l *Logger) Debugf(format string, args ...any) { l.log.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log.Errorf(format, args...) }
