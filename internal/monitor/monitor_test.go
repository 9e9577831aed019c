package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sabado/kuryentrol-scheduler/internal/db"
	"github.com/sabado/kuryentrol-scheduler/internal/monitor"
	"go.uber.org/zap"
)

type fakeThresholdStore struct {
	mu         sync.Mutex
	thresholds []db.Threshold
	readings   map[string][]db.EnergyReading
	listErr    error
	listCalls  int
	disabled   []uuid.UUID
	lastSince  time.Time
}

func (s *fakeThresholdStore) ListThresholds(_ context.Context, onlyEnabled bool) ([]db.Threshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []db.Threshold
	for _, t := range s.thresholds {
		if !onlyEnabled || t.Enabled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeThresholdStore) DisableThreshold(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.thresholds {
		if s.thresholds[i].ID == id {
			s.thresholds[i].Enabled = false
		}
	}
	s.disabled = append(s.disabled, id)
	return nil
}

func (s *fakeThresholdStore) ReadingsSince(_ context.Context, clientID string, since time.Time) ([]db.EnergyReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSince = since
	return s.readings[clientID], nil
}

func (s *fakeThresholdStore) listCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

type fakeAlertPublisher struct {
	mu       sync.Mutex
	commands []string
	alerts   []float64
}

func (p *fakeAlertPublisher) PublishRelayCommand(_ context.Context, clientID string, command string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, command)
	return nil
}

func (p *fakeAlertPublisher) PublishThresholdAlert(_ context.Context, clientID string, consumptionKWh, limitKWh float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, consumptionKWh)
	return nil
}

func (p *fakeAlertPublisher) counts() (commands, alerts int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.commands), len(p.alerts)
}

func samples(clientID string, base time.Time, values ...float64) []db.EnergyReading {
	out := make([]db.EnergyReading, len(values))
	for i, v := range values {
		out[i] = db.EnergyReading{
			ClientID:  clientID,
			EnergyKWh: v,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func newExceededFixture() (*fakeThresholdStore, *fakeAlertPublisher, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 12, 31, 14, 0, 0, 0, time.UTC))

	store := &fakeThresholdStore{
		thresholds: []db.Threshold{{
			ID:          uuid.New(),
			ClientID:    "ESP32-AABBCCDD",
			LimitKWh:    1.0,
			ResetPeriod: db.ResetDaily,
			Enabled:     true,
		}},
		readings: map[string][]db.EnergyReading{
			// 0.5 + reset + 0.7 = 1.2 kWh, above the 1.0 limit
			"ESP32-AABBCCDD": samples("ESP32-AABBCCDD",
				time.Date(2025, 12, 31, 8, 0, 0, 0, time.UTC),
				10.0, 10.5, 0.2, 0.9),
		},
	}

	return store, &fakeAlertPublisher{}, mock
}

func TestSweep_ExceededFiresAtMostOnce(t *testing.T) {
	store, pub, mock := newExceededFixture()
	m := monitor.New(store, pub, mock, time.Minute, zap.NewNop())

	m.Sweep(context.Background())

	commands, alerts := pub.counts()
	if commands != 1 {
		t.Errorf("Expected exactly one relay-off publish, got %d", commands)
	}
	if alerts != 1 {
		t.Errorf("Expected exactly one alert publish, got %d", alerts)
	}
	if len(store.disabled) != 1 {
		t.Fatalf("Expected the threshold to be disabled, got %d disables", len(store.disabled))
	}
	if store.thresholds[0].Enabled {
		t.Error("Expected the threshold's enabled flag to be false")
	}

	// Consumption is still above the limit, but the threshold is disabled:
	// a second sweep must do nothing
	m.Sweep(context.Background())

	commands, alerts = pub.counts()
	if commands != 1 || alerts != 1 {
		t.Errorf("Expected no further publishes on the second sweep, got %d commands, %d alerts", commands, alerts)
	}
}

func TestSweep_ReportsAccumulatedConsumption(t *testing.T) {
	store, pub, mock := newExceededFixture()
	m := monitor.New(store, pub, mock, time.Minute, zap.NewNop())

	m.Sweep(context.Background())

	if len(pub.alerts) != 1 {
		t.Fatalf("Expected one alert, got %d", len(pub.alerts))
	}
	if diff := pub.alerts[0] - 1.2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected alert consumption 1.2 kWh, got %f", pub.alerts[0])
	}
}

func TestSweep_BelowLimitNoAction(t *testing.T) {
	store, pub, mock := newExceededFixture()
	store.thresholds[0].LimitKWh = 5.0
	m := monitor.New(store, pub, mock, time.Minute, zap.NewNop())

	m.Sweep(context.Background())

	commands, alerts := pub.counts()
	if commands != 0 || alerts != 0 {
		t.Errorf("Expected no publishes below the limit, got %d commands, %d alerts", commands, alerts)
	}
	if len(store.disabled) != 0 {
		t.Error("Expected the threshold to stay enabled")
	}
}

func TestSweep_UsesPeriodStartBound(t *testing.T) {
	store, pub, mock := newExceededFixture()
	store.thresholds[0].ResetPeriod = db.ResetWeekly
	m := monitor.New(store, pub, mock, time.Minute, zap.NewNop())

	m.Sweep(context.Background())

	// 2025-12-31 is a Wednesday; the weekly window opens Monday 00:00
	expected := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	if !store.lastSince.Equal(expected) {
		t.Errorf("Expected readings queried since %v, got %v", expected, store.lastSince)
	}
}

func TestSweep_ListFailureAborts(t *testing.T) {
	store, pub, mock := newExceededFixture()
	store.listErr = errors.New("connection refused")
	m := monitor.New(store, pub, mock, time.Minute, zap.NewNop())

	m.Sweep(context.Background())

	commands, alerts := pub.counts()
	if commands != 0 || alerts != 0 {
		t.Error("Expected no publishes when the threshold list cannot be loaded")
	}
}

func TestStartStop_SweepsOnInterval(t *testing.T) {
	store, pub, mock := newExceededFixture()
	store.thresholds[0].LimitKWh = 5.0
	m := monitor.New(store, pub, mock, time.Minute, zap.NewNop())

	m.Start()

	// Keep advancing the mock clock until the run loop's ticker is armed
	// and a sweep lands
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && store.listCallCount() == 0 {
		mock.Add(time.Minute)
		time.Sleep(time.Millisecond)
	}
	if store.listCallCount() == 0 {
		t.Fatal("Expected at least one sweep after the interval elapsed")
	}

	m.Stop()
}
