// Package logrus adapts github.com/sirupsen/logrus to the log.Logger
// interface, for use by the daemon binary (cmd/wfded) rather than the
// embeddable library core, which defaults to the go-kit adapter.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/jgaa/wfde/log"
)

var _ log.Logger = (*Logger)(nil)

// Logger wraps a logrus.FieldLogger.
type Logger struct {
	entry *logrus.Entry
}

// New wraps l as a log.Logger.
func New(l *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(l)}
}

func fields(keyvals ...interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)

	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}

		f[key] = keyvals[i+1]
	}

	return f
}

// Debug logs event at debug level with keyvals as structured fields.
func (l *Logger) Debug(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals...)).Debug(event)
}

// Info logs event at info level with keyvals as structured fields.
func (l *Logger) Info(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals...)).Info(event)
}

// Warn logs event at warn level with keyvals as structured fields.
func (l *Logger) Warn(event string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals...)).Warn(event)
}

// Error logs event at error level, attaching err plus keyvals as fields.
func (l *Logger) Error(event string, err error, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals...)).WithError(err).Error(event)
}

// With returns a Logger that always attaches keyvals as fields.
func (l *Logger) With(keyvals ...interface{}) log.Logger {
	return &Logger{entry: l.entry.WithFields(fields(keyvals...))}
}
