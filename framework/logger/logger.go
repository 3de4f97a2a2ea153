// Package logger builds the application's zap logger from configuration.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zengzjie/nest-source/framework/config"
)

// New returns a production JSON logger when env is production and a
// development console logger otherwise, at the configured level.
func New(env string, cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if env == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		l, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		level = l
	}
	zc.Level = level

	return zc.Build()
}

// Must is New that panics on failure.
func Must(env string, cfg config.LogConfig) *zap.Logger {
	l, err := New(env, cfg)
	if err != nil {
		panic(err)
	}
	return l
}
