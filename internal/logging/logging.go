// Package logging constructs the engine's structured logger, grounded
// on the use of go.uber.org/zap throughout storage/ and scm/ (e.g. the
// dashboard and network layers log via a package-level zap.Logger
// rather than the standard library's log package).
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap.Logger at the given level ("debug",
// "info", "warn", "error"), JSON-encoded to stderr. The returned
// zap.AtomicLevel can be mutated later (config.Watcher's hot reload
// does this) without rebuilding the logger.
func New(level string) (*zap.Logger, zap.AtomicLevel, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: unknown level %q: %w", level, err)
	}
	atom := zap.NewAtomicLevelAt(lvl)
	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, atom, nil
}
