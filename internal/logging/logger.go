package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "apimonitor.log"

type options struct {
	level   zapcore.Level
	console bool
}

type Option func(*options)

// WithLevel sets the minimum level by name ("debug", "info", "warn", "error").
// Unknown names keep info.
func WithLevel(name string) Option {
	return func(o *options) {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(name)); err == nil {
			o.level = lvl
		}
	}
}

// WithConsole tees every entry to stderr as well as the rotating file.
func WithConsole(on bool) Option {
	return func(o *options) { o.console = on }
}

func NewLogger(logDir string, opts ...Option) (*zap.Logger, error) {
	o := options{level: zap.InfoLevel}
	for _, fn := range opts {
		fn(&o)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, fileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, o.level)
	if o.console {
		stderr := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(os.Stderr), o.level)
		core = zapcore.NewTee(core, stderr)
	}
	return zap.New(core), nil
}
