package helpers

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the JSON logger from the textual level, an empty or unknown
// level falls back on fatal
func NewLogger(level string) *zap.Logger {
	var logLevel zapcore.Level
	if level == "" {
		logLevel = zapcore.FatalLevel
	} else if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = zapcore.FatalLevel
	}
	cfg := zap.Config{
		Encoding:         "json",
		Level:            zap.NewAtomicLevelAt(logLevel),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "message",

			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.ISO8601TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}

	return logger
}

// InitializeLogger set the logger on the configuration if none was given
func InitializeLogger(c interface {
	GetLogLevel() string
	GetLogger() *zap.Logger
	SetLogger(*zap.Logger)
}) *zap.Logger {
	if c.GetLogger() == nil {
		c.SetLogger(NewLogger(c.GetLogLevel()))
	}

	return c.GetLogger()
}
