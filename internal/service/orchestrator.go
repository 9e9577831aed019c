package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sabado/kuryentrol-scheduler/internal/db"
	"github.com/sabado/kuryentrol-scheduler/internal/monitor"
	"github.com/sabado/kuryentrol-scheduler/internal/mqtt"
	"github.com/sabado/kuryentrol-scheduler/internal/scheduler"
	"go.uber.org/zap"
)

const persistReadingTimeout = 5 * time.Second

// Store is the subset of datastore operations the orchestrator needs
type Store interface {
	ListSchedules(ctx context.Context, onlyEnabled bool) ([]db.Schedule, error)
	InsertReading(ctx context.Context, clientID string, energyKWh float64) error
}

// Orchestrator is the composition root: it wires inbound telemetry to the
// datastore and owns startup/shutdown sequencing of the transport, job
// scheduler and threshold monitor.
type Orchestrator struct {
	store   Store
	client  *mqtt.Client
	gateway *mqtt.Gateway
	sched   *scheduler.Scheduler
	monitor *monitor.Monitor
	logger  *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	store Store,
	client *mqtt.Client,
	gateway *mqtt.Gateway,
	sched *scheduler.Scheduler,
	mon *monitor.Monitor,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:   store,
		client:  client,
		gateway: gateway,
		sched:   sched,
		monitor: mon,
		logger:  logger,
	}
}

// HandleReading persists an inbound energy reading and nothing else; the
// threshold monitor consults stored readings on its own cadence, keeping
// ingestion and enforcement decoupled.
func (o *Orchestrator) HandleReading(clientID string, energyKWh float64) {
	ctx, cancel := context.WithTimeout(context.Background(), persistReadingTimeout)
	defer cancel()

	if err := o.store.InsertReading(ctx, clientID, energyKWh); err != nil {
		o.logger.Error("failed to store energy reading",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
	}
}

// Start connects the transport, subscribes, loads schedules into the job
// scheduler and starts the dispatch loops
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.client.Connect(); err != nil {
		return err
	}

	if err := o.gateway.Subscribe(o.HandleReading); err != nil {
		return err
	}

	schedules, err := o.store.ListSchedules(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	o.sched.Load(ctx, schedules)

	o.sched.Start()
	o.monitor.Start()

	o.logger.Info("scheduler daemon started")
	return nil
}

// Stop halts the dispatch loops before releasing the transport connection,
// so no job fires against a closed transport
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.monitor.Stop()
	o.sched.Stop()
	o.client.Disconnect()

	o.logger.Info("scheduler daemon stopped")
	return nil
}
