// Package log builds the zap loggers used across the publisher: a root logger
// configured from the LOGGING section and named module loggers with their own
// dynamic level.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// ConsoleEncoder writes human readable lines.
	ConsoleEncoder = "console"
	// JSONEncoder writes one json object per line.
	JSONEncoder = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stderr

// Encoder returns the zap encoder for the given kind. Unknown kinds fall back to console.
func Encoder(kind string) zapcore.Encoder {
	if kind == JSONEncoder {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000")
	return zapcore.NewConsoleEncoder(cfg)
}

// NewWithLevel creates a logger with a fixed level and with a set of (optional) hooks.
func NewWithLevel(
	name string,
	level zap.AtomicLevel,
	encoder zapcore.Encoder,
	hooks ...func(zapcore.Entry) error,
) *zap.Logger {
	var core zapcore.Core = zapcore.NewCore(encoder, zapcore.AddSync(logWriter), level)
	if len(hooks) > 0 {
		core = &hookedCore{Core: core, hooks: hooks}
	}
	return zap.New(core).Named(name)
}

// hookedCore writes entries and then runs hooks on them.
// Unlike zapcore.RegisterHooks, Write also writes, so module cores that add it
// to a checked entry directly keep producing output.
type hookedCore struct {
	zapcore.Core
	hooks []func(zapcore.Entry) error
}

func (h *hookedCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if h.Enabled(e.Level) {
		return ce.AddCore(e, h)
	}
	return ce
}

func (h *hookedCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	errs := []error{h.Core.Write(e, fields)}
	for _, hook := range h.hooks {
		errs = append(errs, hook(e))
	}
	return errors.Join(errs...)
}

func (h *hookedCore) With(fields []zapcore.Field) zapcore.Core {
	return &hookedCore{Core: h.Core.With(fields), hooks: h.hooks}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(lvl string) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(lvl)
	if err != nil {
		return level, fmt.Errorf("parse log level %q: %w", lvl, err)
	}
	return level, nil
}

// Module returns a named child of logger whose level is controlled by lvl
// independently of the parent level.
func Module(logger *zap.Logger, name string, lvl zap.AtomicLevel) *zap.Logger {
	return logger.Named(name).WithOptions(addDynamicLevel(lvl))
}

func addDynamicLevel(level zap.AtomicLevel) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &coreWithLevel{
			Core: core,
			lvl:  level,
		}
	})
}

type coreWithLevel struct {
	zapcore.Core
	lvl zap.AtomicLevel
}

func (c *coreWithLevel) Enabled(level zapcore.Level) bool {
	return c.lvl.Enabled(level)
}

func (c *coreWithLevel) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.lvl.Enabled(e.Level) {
		return ce
	}
	return ce.AddCore(e, c.Core)
}

func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		Core: c.Core.With(fields),
		lvl:  c.lvl,
	}
}
