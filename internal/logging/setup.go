package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes how the process logger is built.
type Options struct {
	// Backend is "slog" (default) or "zap".
	Backend string `json:"backend" mapstructure:"backend"`
	// Format is "text" (default) or "json".
	Format string `json:"format" mapstructure:"format"`
	// Level is one of debug, info, warn, error.
	Level string `json:"level" mapstructure:"level"`
	// File, when set, sends output to a size-rotated file instead of stderr.
	File       string `json:"file" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
}

// Handle owns the resources behind a logger built by New and lets callers
// change the level while the process runs.
type Handle struct {
	setLevel func(slog.Level)
	closer   io.Closer
	flush    func() error
}

// SetLevel parses name and applies it to the running logger.
func (h *Handle) SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	h.setLevel(lvl)
	return nil
}

// Close flushes buffered output and releases the log file, if any.
func (h *Handle) Close() error {
	if h.flush != nil {
		_ = h.flush()
	}
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}

// ParseLevel converts a textual level into a slog.Level. An empty string
// means info.
func ParseLevel(name string) (slog.Level, error) {
	if name == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// New builds a Logger according to opts.
func New(opts Options) (Logger, *Handle, error) {
	return newWithWriter(opts, os.Stderr)
}

func newWithWriter(opts Options, stderr io.Writer) (Logger, *Handle, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = stderr
	var closer io.Closer
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		out, closer = lj, lj
	}

	switch strings.ToLower(opts.Backend) {
	case "", "slog":
		lv := new(slog.LevelVar)
		lv.Set(lvl)
		hopts := &slog.HandlerOptions{Level: lv}
		var h slog.Handler
		if strings.EqualFold(opts.Format, "json") {
			h = slog.NewJSONHandler(out, hopts)
		} else {
			h = slog.NewTextHandler(out, hopts)
		}
		return NewSlogLogger(slog.New(h)), &Handle{setLevel: lv.Set, closer: closer}, nil

	case "zap":
		al := zap.NewAtomicLevelAt(zapLevel(lvl))
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder
		if strings.EqualFold(opts.Format, "json") {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(out), al))
		h := &Handle{
			setLevel: func(l slog.Level) { al.SetLevel(zapLevel(l)) },
			closer:   closer,
			flush:    zl.Sync,
		}
		return NewZapLogger(zl), h, nil

	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l < slog.LevelInfo:
		return zapcore.DebugLevel
	case l < slog.LevelWarn:
		return zapcore.InfoLevel
	case l < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
