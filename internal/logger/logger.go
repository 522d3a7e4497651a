package logger

import (
	"go.uber.org/zap"
)

// New returns a sugared logger. Development environments get the
// human-readable console encoder, everything else gets JSON.
func New(env string) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case "dev", "development", "test":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}
