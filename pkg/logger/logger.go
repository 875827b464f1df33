package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the process logger. It starts as a production logger at info level and is
// replaced by Init once the configuration is known.
var L *zap.Logger

func init() {
	l, err := build("production", "info")
	if err != nil {
		panic(err)
	}
	L = l
}

// Init rebuilds L for the given environment and level.
func Init(environment, level string) error {
	l, err := build(environment, level)
	if err != nil {
		return err
	}
	L = l
	return nil
}

func build(environment, level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	switch strings.ToLower(environment) {
	case "dev", "development", "local":
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	return config.Build()
}

// WithComponent returns a child logger tagged with a component field.
func WithComponent(component string) *zap.Logger {
	return L.With(zap.String("component", component))
}

func Sync() {
	_ = L.Sync()
}
