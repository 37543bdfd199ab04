package mlog

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	// Level, See also zapcore.ParseLevel.
	Level string `yaml:"level"`

	// File that logger will be writen into.
	// Default is stderr.
	File string `yaml:"file"`

	// Production enables json output.
	Production bool `yaml:"production"`
}

var (
	stderr = zapcore.Lock(os.Stderr)

	lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	l   atomic.Pointer[zap.Logger]
	s   atomic.Pointer[zap.SugaredLogger]
)

func init() {
	lg := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), stderr, lvl))
	SetLogger(lg)
}

// NewLogger builds a logger from lc. It does not replace the global logger.
func NewLogger(lc *LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(lc.Level)
	if err != nil && len(lc.Level) > 0 {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if len(lc.Level) == 0 {
		lvl = zapcore.InfoLevel
	}

	var out zapcore.WriteSyncer
	if len(lc.File) > 0 {
		f, _, err := zap.Open(lc.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = zapcore.Lock(f)
	} else {
		out = stderr
	}

	var enc zapcore.Encoder
	if lc.Production {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	return zap.New(zapcore.NewCore(enc, out, lvl), zap.AddCaller()), nil
}

// L is a global logger.
func L() *zap.Logger {
	return l.Load()
}

// S is a global sugared logger.
func S() *zap.SugaredLogger {
	return s.Load()
}

// SetLogger replaces the global logger.
func SetLogger(lg *zap.Logger) {
	l.Store(lg)
	s.Store(lg.Sugar())
}

// SetLevel changes the level of the default logger built in init.
func SetLevel(level zapcore.Level) {
	lvl.SetLevel(level)
}
