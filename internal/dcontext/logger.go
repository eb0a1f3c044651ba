// Package dcontext carries a leveled logger through a context.Context, the
// same shape as distribution's internal/dcontext, backed by logrus.
package dcontext

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   *logrus.Entry = logrus.StandardLogger().WithField("go.version", runtime.Version())
	defaultLoggerMu sync.RWMutex
)

// Logger provides a leveled-logging interface.
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})
	Println(args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Debugln(args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Errorln(args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Infoln(args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Warnln(args ...interface{})

	WithError(err error) *logrus.Entry
}

type loggerKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger carried by ctx, or the default logger if
// none was attached. Only a carried *logrus.Entry is used; a carried Logger
// of any other type is ignored and the default logger is returned. If keys
// are given, their values in ctx are included as log fields.
func GetLogger(ctx context.Context, keys ...interface{}) Logger {
	return getLogrusLogger(ctx, keys...)
}

// GetLoggerWithField returns a logger with an extra field, without
// affecting ctx.
func GetLoggerWithField(ctx context.Context, key, value interface{}, keys ...interface{}) Logger {
	return getLogrusLogger(ctx, keys...).WithField(fmt.Sprint(key), value)
}

// GetLoggerWithFields returns a logger with extra fields, without
// affecting ctx.
func GetLoggerWithFields(ctx context.Context, fields map[string]interface{}, keys ...interface{}) Logger {
	return getLogrusLogger(ctx, keys...).WithFields(logrus.Fields(fields))
}

// SetDefaultLogger replaces the package default logger used when no logger
// is attached to a context.
func SetDefaultLogger(logger *logrus.Entry) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

func getLogrusLogger(ctx context.Context, keys ...interface{}) *logrus.Entry {
	var logger *logrus.Entry

	if v := ctx.Value(loggerKey{}); v != nil {
		if entry, ok := v.(*logrus.Entry); ok {
			logger = entry
		}
	}

	if logger == nil {
		defaultLoggerMu.RLock()
		logger = defaultLogger
		defaultLoggerMu.RUnlock()
	}

	fields := logrus.Fields{}
	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			fields[fmt.Sprint(key)] = v
		}
	}

	return logger.WithFields(fields)
}
