// Package logging defines the structured logger interface shared by every
// component, matching the shape the teacher lineage already exposes:
// Debug/Info/Warn/Error with loosely-typed key/value pairs.
package logging

import (
	"go.uber.org/zap"
)

// Logger is implemented by every structured logging backend this engine
// uses. Components depend on this interface, never on a concrete backend.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// NoOpLogger discards everything. Used as the default in tests and in any
// component constructed without an explicit logger.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{}) {}
func (NoOpLogger) Info(string, ...interface{})  {}
func (NoOpLogger) Warn(string, ...interface{})  {}
func (NoOpLogger) Error(string, ...interface{}) {}

// zapLogger adapts the package's loosely-typed key/value signature onto
// zap.SugaredLogger, which already accepts alternating key/value pairs.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to info).
func NewZapLogger(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: base.Sugar()}, nil
}

func (z *zapLogger) Debug(msg string, kv ...interface{}) { z.s.Debugw(msg, kv...) }
func (z *zapLogger) Info(msg string, kv ...interface{})  { z.s.Infow(msg, kv...) }
func (z *zapLogger) Warn(msg string, kv ...interface{})  { z.s.Warnw(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...interface{}) { z.s.Errorw(msg, kv...) }
