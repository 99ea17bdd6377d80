package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the global logger instance. It discards everything until Init.
	Log = zap.NewNop()
)

// New builds a logger: coloured console output in development, JSON otherwise.
// Output goes to stderr so command output on stdout stays clean.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config

	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

// Init initializes the global logger with the given config
func Init(development bool) error {
	logger, err := New(development)
	if err != nil {
		return err
	}

	Log = logger
	return nil
}

// Error logs msg on the global logger
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}
