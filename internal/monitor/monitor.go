package monitor

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sabado/kuryentrol-scheduler/internal/consumption"
	"github.com/sabado/kuryentrol-scheduler/internal/db"
	"github.com/sabado/kuryentrol-scheduler/internal/mqtt"
	"go.uber.org/zap"
)

const sweepTimeout = 30 * time.Second

// ThresholdStore is the subset of datastore operations the monitor needs
type ThresholdStore interface {
	ListThresholds(ctx context.Context, onlyEnabled bool) ([]db.Threshold, error)
	DisableThreshold(ctx context.Context, id uuid.UUID) error
	ReadingsSince(ctx context.Context, clientID string, since time.Time) ([]db.EnergyReading, error)
}

// AlertPublisher publishes enforcement commands and alerts
type AlertPublisher interface {
	PublishRelayCommand(ctx context.Context, clientID string, command string) error
	PublishThresholdAlert(ctx context.Context, clientID string, consumptionKWh, limitKWh float64) error
}

// Monitor periodically sweeps enabled thresholds and enforces any whose
// consumption budget is exceeded. Enforcement disables the threshold row,
// so each threshold fires at most once per enable cycle; re-enabling is an
// operator action, never done here.
type Monitor struct {
	store    ThresholdStore
	pub      AlertPublisher
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// New creates a new threshold monitor sweeping at the given interval
func New(store ThresholdStore, pub AlertPublisher, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		store:    store,
		pub:      pub,
		clock:    clk,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop on its own goroutine
func (m *Monitor) Start() {
	go m.run()
	m.logger.Info("threshold monitor started", zap.Duration("interval", m.interval))
}

// Stop halts the sweep loop and waits for it to exit
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
	m.logger.Info("threshold monitor stopped")
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			m.Sweep(ctx)
			cancel()
		}
	}
}

// Sweep checks every enabled threshold once. A failure on one threshold is
// logged and does not stop the rest of the sweep.
func (m *Monitor) Sweep(ctx context.Context) {
	thresholds, err := m.store.ListThresholds(ctx, true)
	if err != nil {
		m.logger.Error("failed to list thresholds", zap.Error(err))
		return
	}

	now := m.clock.Now()
	for i := range thresholds {
		m.checkThreshold(ctx, &thresholds[i], now)
	}
}

func (m *Monitor) checkThreshold(ctx context.Context, threshold *db.Threshold, now time.Time) {
	periodStart := consumption.PeriodStart(threshold.ResetPeriod, now)

	readings, err := m.store.ReadingsSince(ctx, threshold.ClientID, periodStart)
	if err != nil {
		m.logger.Error("failed to query readings",
			zap.String("client_id", threshold.ClientID),
			zap.Error(err),
		)
		return
	}

	consumed := consumption.Accumulate(readings)
	if consumed < threshold.LimitKWh {
		return
	}

	m.logger.Warn("threshold exceeded, cutting power",
		zap.String("client_id", threshold.ClientID),
		zap.Float64("consumption_kwh", consumed),
		zap.Float64("limit_kwh", threshold.LimitKWh),
	)

	if err := m.pub.PublishRelayCommand(ctx, threshold.ClientID, mqtt.CommandRelayOff); err != nil {
		m.logger.Error("failed to publish relay command", zap.Error(err))
		return
	}

	if err := m.pub.PublishThresholdAlert(ctx, threshold.ClientID, consumed, threshold.LimitKWh); err != nil {
		m.logger.Error("failed to publish threshold alert", zap.Error(err))
	}

	if err := m.store.DisableThreshold(ctx, threshold.ID); err != nil {
		m.logger.Error("failed to disable threshold", zap.Error(err))
	}
}
