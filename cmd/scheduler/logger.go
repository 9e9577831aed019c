package main

import (
	"github.com/sabado/kuryentrol-scheduler/internal/config"
	"github.com/sabado/kuryentrol-scheduler/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
