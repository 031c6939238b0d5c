package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelCore pins a wrapped core to its own minimum level, independent of
// the shared atomic level.
type levelCore struct {
	zapcore.Core

	// minimum is the lowest level this core lets through.
	minimum zapcore.Level
}

// Enabled reports whether l passes the pinned minimum.
func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.minimum.Enabled(l)
}

// Check adds the core to ce when the entry level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

// With keeps the pinned level on derived cores.
//
//nolint:ireturn,nolintlint // zapcore.Core is the integration point.
func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{
		Core:    c.Core.With(fields),
		minimum: c.minimum,
	}
}

// WithLevel returns an option that pins the logger to lvl. The offline
// tools use it to keep per-line chatter out of their table output.
//
//nolint:ireturn,nolintlint // zap.Option is the integration point.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelCore{
			Core:    core,
			minimum: lvl,
		}
	})
}
