// Package logger builds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
)

// Log is the logger built by New, for code without an injected logger.
var Log = zap.NewNop()

// New builds a JSON production logger, or a console development logger when env is
// "development" or "dev".
func New(env string) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	switch env {
	case "development", "dev":
		l, err = zap.NewDevelopment()
	default:
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	Log = l
	return l, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
