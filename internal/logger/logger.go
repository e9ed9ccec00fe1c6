package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavour
type Options struct {
	// Service is attached to every entry as the "service" field
	Service string
	Debug   bool
	// Development switches to console encoding for local runs
	Development bool
}

// New builds a logger from opts
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	if opts.Development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = productionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(level(opts.Debug))
	if opts.Service != "" {
		config.InitialFields = map[string]any{"service": opts.Service}
	}
	return config.Build()
}

// NewProductionLogger creates a JSON logger at info level, or debug level when debugMode is set
func NewProductionLogger(debugMode bool) (*zap.Logger, error) {
	return New(Options{Debug: debugMode})
}

func level(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func productionConfig() zap.Config {
	config := zap.NewProductionConfig()
	config.Encoding = "json"
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	// stack traces on error level and above
	config.DisableStacktrace = false
	return config
}

// Sync flushes buffered entries. Safe to call more than once.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
