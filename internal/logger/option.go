package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// leveledCore overrides the level of a wrapped core.
type leveledCore struct {
	zapcore.Core

	// level is the minimum level this core lets through.
	level zapcore.Level
}

// Enabled reports whether l passes the override level.
func (c *leveledCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check adds the core to ce when the entry passes the override level.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the override level on derived cores.
//
//nolint:ireturn,nolintlint // zapcore.Core is the contract zap expects.
func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{
		Core:  c.Core.With(fields),
		level: c.level,
	}
}

// WithLevel returns an option that pins a logger to lvl regardless of the global level.
//
//nolint:ireturn,nolintlint // zap.Option is the contract zap expects.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &leveledCore{Core: core, level: lvl}
	})
}
