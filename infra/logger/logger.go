// Package logger keeps a logrus entry in the context so request and
// subscription scoped fields travel with it.
package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.FieldLogger

type ctxKey struct{}

var DefaultLogger = newDefault()

func newDefault() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})

	return logrus.NewEntry(l)
}

// SetLevel sets the level of DefaultLogger, e.g. "debug" or "warn".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	DefaultLogger.Logger.SetLevel(lvl)

	return nil
}

func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

func FromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return DefaultLogger
	}
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok && entry != nil {
		return entry
	}

	return DefaultLogger
}
