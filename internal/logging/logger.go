// Package logging builds the process logger. The logging.development config
// key picks between a colored console logger at debug level and JSON at info.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config returns the zap configuration New builds from.
func Config(development bool) zap.Config {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg
}

// New builds the teamscraper logger.
func New(development bool) (*zap.Logger, error) {
	return build(Config(development), development)
}

func build(cfg zap.Config, development bool) (*zap.Logger, error) {
	logger, err := cfg.Build()
	if err != nil {
		mode := "prod"
		if development {
			mode = "dev"
		}
		return nil, fmt.Errorf("build %s logger: %w", mode, err)
	}
	return logger.Named("teamscraper"), nil
}
