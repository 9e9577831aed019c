package main

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sabado/kuryentrol-scheduler/internal/config"
	"github.com/sabado/kuryentrol-scheduler/internal/db"
	"github.com/sabado/kuryentrol-scheduler/internal/monitor"
	"github.com/sabado/kuryentrol-scheduler/internal/mqtt"
	"github.com/sabado/kuryentrol-scheduler/internal/repository"
	"github.com/sabado/kuryentrol-scheduler/internal/scheduler"
	"github.com/sabado/kuryentrol-scheduler/internal/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startDaemon(lc fx.Lifecycle, orch *service.Orchestrator) {
	lc.Append(fx.Hook{
		OnStart: orch.Start,
		OnStop:  orch.Stop,
	})
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideMQTTClient creates the broker client instance
func ProvideMQTTClient(cfg *config.Config, logger *zap.Logger) *mqtt.Client {
	return mqtt.NewClient(cfg.MQTT.Host, cfg.MQTT.Port, cfg.MQTT.ClientID, logger)
}

// ProvideGateway creates the transport gateway instance
func ProvideGateway(client *mqtt.Client, logger *zap.Logger) *mqtt.Gateway {
	return mqtt.NewGateway(client, logger)
}

// ProvideScheduler creates the job scheduler instance
func ProvideScheduler(repo *repository.Repository, gateway *mqtt.Gateway, logger *zap.Logger) *scheduler.Scheduler {
	return scheduler.New(repo, gateway, clock.New(), logger)
}

// ProvideMonitor creates the threshold monitor instance
func ProvideMonitor(repo *repository.Repository, gateway *mqtt.Gateway, cfg *config.Config, logger *zap.Logger) *monitor.Monitor {
	interval := time.Duration(cfg.Monitor.SweepIntervalSeconds) * time.Second
	return monitor.New(repo, gateway, clock.New(), interval, logger)
}

// ProvideOrchestrator creates the orchestrator instance
func ProvideOrchestrator(
	repo *repository.Repository,
	client *mqtt.Client,
	gateway *mqtt.Gateway,
	sched *scheduler.Scheduler,
	mon *monitor.Monitor,
	logger *zap.Logger,
) *service.Orchestrator {
	return service.NewOrchestrator(repo, client, gateway, sched, mon, logger)
}
