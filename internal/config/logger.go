package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process root logger from "logging.level"
// (debug, info, warn, error) and "logging.format" (json or console).
// Components derive their own loggers from it via Component.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	raw := v.GetString("logging.level")

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", raw, err)
	}

	cfg, err := loggerConfig(v.GetString("logging.format"))
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func loggerConfig(format string) (zap.Config, error) {
	switch format {
	case "console":
		return zap.NewDevelopmentConfig(), nil
	case "json", "":
		return zap.NewProductionConfig(), nil
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q, expected json or console", format)
	}
}

// Component returns a child logger tagged with the component name, so
// every record carries which part of the system emitted it.
func Component(root *zap.Logger, name string) *zap.Logger {
	return root.Named(name)
}
