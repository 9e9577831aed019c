package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sabado/kuryentrol-scheduler/internal/db"
	"github.com/sabado/kuryentrol-scheduler/internal/mqtt"
	"github.com/sabado/kuryentrol-scheduler/tools/timeparser"
	"go.uber.org/zap"
)

const relayActionTimeout = 10 * time.Second

// ScheduleStore is the subset of datastore operations the scheduler needs
type ScheduleStore interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*db.Schedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
	InsertExecution(ctx context.Context, scheduleID uuid.UUID, action string) error
}

// CommandPublisher publishes relay commands for a device
type CommandPublisher interface {
	PublishRelayCommand(ctx context.Context, clientID string, command string) error
}

type phase string

const (
	phaseOn  phase = "on"
	phaseOff phase = "off"
)

type jobKey struct {
	ScheduleID uuid.UUID
	Phase      phase
}

// Scheduler owns the registry of active timed relay jobs. Daily schedules
// register two recurring cron entries (on and off); timer schedules arm a
// single one-shot. Registration for an id already present replaces the
// previous jobs so reloads and edits never accumulate stale jobs.
type Scheduler struct {
	store  ScheduleStore
	pub    CommandPublisher
	cron   *cron.Cron
	clock  clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	entries map[jobKey]cron.EntryID
	timers  map[uuid.UUID]*clock.Timer
}

// New creates a new job scheduler. The clock drives one-shot timers and
// is injectable for deterministic tests; daily triggers run on cron, each
// firing on its own goroutine.
func New(store ScheduleStore, pub CommandPublisher, clk clock.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		pub:     pub,
		cron:    cron.New(),
		clock:   clk,
		logger:  logger,
		entries: make(map[jobKey]cron.EntryID),
		timers:  make(map[uuid.UUID]*clock.Timer),
	}
}

// Load registers every schedule in the list. A schedule that fails to
// register is logged and skipped; the rest still load.
func (s *Scheduler) Load(ctx context.Context, schedules []db.Schedule) {
	for i := range schedules {
		if err := s.Register(&schedules[i]); err != nil {
			s.logger.Error("failed to register schedule",
				zap.String("schedule_id", schedules[i].ID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("schedules loaded", zap.Int("count", len(schedules)))
}

// Register adds the job(s) for a schedule, replacing any jobs previously
// registered under the same schedule id.
func (s *Scheduler) Register(schedule *db.Schedule) error {
	switch schedule.Type {
	case db.ScheduleDaily:
		return s.registerDaily(schedule)
	case db.ScheduleTimer:
		return s.registerTimer(schedule)
	default:
		return fmt.Errorf("unknown schedule type '%s'", schedule.Type)
	}
}

func (s *Scheduler) registerDaily(schedule *db.Schedule) error {
	if schedule.StartTime == nil || schedule.EndTime == nil {
		return fmt.Errorf("daily schedule %s is missing start or end time", schedule.ID)
	}

	onSpec, err := timeparser.CronSpec(*schedule.StartTime, schedule.DaysOfWeek)
	if err != nil {
		return err
	}
	offSpec, err := timeparser.CronSpec(*schedule.EndTime, schedule.DaysOfWeek)
	if err != nil {
		return err
	}

	clientID := schedule.ClientID
	scheduleID := schedule.ID

	onID, err := s.cron.AddFunc(onSpec, func() {
		s.TurnRelayOn(context.Background(), clientID, scheduleID)
	})
	if err != nil {
		return fmt.Errorf("failed to add on trigger: %w", err)
	}

	offID, err := s.cron.AddFunc(offSpec, func() {
		s.TurnRelayOff(context.Background(), clientID, scheduleID)
	})
	if err != nil {
		s.cron.Remove(onID)
		return fmt.Errorf("failed to add off trigger: %w", err)
	}

	s.mu.Lock()
	s.removeLocked(scheduleID)
	s.entries[jobKey{scheduleID, phaseOn}] = onID
	s.entries[jobKey{scheduleID, phaseOff}] = offID
	s.mu.Unlock()

	s.logger.Info("registered daily schedule",
		zap.String("schedule_id", scheduleID.String()),
		zap.String("client_id", clientID),
		zap.String("start_time", *schedule.StartTime),
		zap.String("end_time", *schedule.EndTime),
	)
	return nil
}

func (s *Scheduler) registerTimer(schedule *db.Schedule) error {
	if schedule.DurationSeconds == nil {
		return fmt.Errorf("timer schedule %s is missing duration", schedule.ID)
	}

	duration := time.Duration(*schedule.DurationSeconds) * time.Second
	clientID := schedule.ClientID
	scheduleID := schedule.ID

	s.mu.Lock()
	s.removeLocked(scheduleID)
	s.timers[scheduleID] = s.clock.AfterFunc(duration, func() {
		s.TurnRelayOff(context.Background(), clientID, scheduleID)
	})
	s.mu.Unlock()

	s.logger.Info("registered timer schedule",
		zap.String("schedule_id", scheduleID.String()),
		zap.String("client_id", clientID),
		zap.Duration("duration", duration),
	)
	return nil
}

// Unregister removes all jobs for a schedule id. Used when a schedule is
// deleted externally.
func (s *Scheduler) Unregister(scheduleID uuid.UUID) {
	s.mu.Lock()
	s.removeLocked(scheduleID)
	s.mu.Unlock()

	s.logger.Info("unregistered schedule", zap.String("schedule_id", scheduleID.String()))
}

// removeLocked drops all jobs for a schedule id. Caller holds s.mu, so no
// window exists where old and new jobs could both fire.
func (s *Scheduler) removeLocked(scheduleID uuid.UUID) {
	for _, p := range []phase{phaseOn, phaseOff} {
		key := jobKey{scheduleID, p}
		if entryID, ok := s.entries[key]; ok {
			s.cron.Remove(entryID)
			delete(s.entries, key)
		}
	}
	if timer, ok := s.timers[scheduleID]; ok {
		timer.Stop()
		delete(s.timers, scheduleID)
	}
}

// TurnRelayOn publishes RELAY_ON and records the execution
func (s *Scheduler) TurnRelayOn(ctx context.Context, clientID string, scheduleID uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, relayActionTimeout)
	defer cancel()

	s.logger.Info("schedule firing: turning relay on",
		zap.String("schedule_id", scheduleID.String()),
		zap.String("client_id", clientID),
	)

	if err := s.pub.PublishRelayCommand(ctx, clientID, mqtt.CommandRelayOn); err != nil {
		s.logger.Error("failed to publish relay command", zap.Error(err))
		return
	}

	if err := s.store.InsertExecution(ctx, scheduleID, db.ActionOn); err != nil {
		s.logger.Error("failed to log schedule execution", zap.Error(err))
	}
}

// TurnRelayOff publishes RELAY_OFF, records the execution, and deletes the
// schedule row if it was a timer (a timer fires exactly once)
func (s *Scheduler) TurnRelayOff(ctx context.Context, clientID string, scheduleID uuid.UUID) {
	ctx, cancel := context.WithTimeout(ctx, relayActionTimeout)
	defer cancel()

	s.logger.Info("schedule firing: turning relay off",
		zap.String("schedule_id", scheduleID.String()),
		zap.String("client_id", clientID),
	)

	if err := s.pub.PublishRelayCommand(ctx, clientID, mqtt.CommandRelayOff); err != nil {
		s.logger.Error("failed to publish relay command", zap.Error(err))
		return
	}

	if err := s.store.InsertExecution(ctx, scheduleID, db.ActionOff); err != nil {
		s.logger.Error("failed to log schedule execution", zap.Error(err))
	}

	schedule, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		s.logger.Error("failed to fetch schedule after firing", zap.Error(err))
		return
	}

	if schedule != nil && schedule.Type == db.ScheduleTimer {
		if err := s.store.DeleteSchedule(ctx, scheduleID); err != nil {
			s.logger.Error("failed to delete expired timer schedule", zap.Error(err))
		}
		s.mu.Lock()
		delete(s.timers, scheduleID)
		s.mu.Unlock()

		s.logger.Info("timer schedule expired", zap.String("schedule_id", scheduleID.String()))
	}
}

// Start begins dispatching recurring triggers
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started")
}

// Stop halts dispatch, waits for in-flight firings to finish, and stops
// all pending one-shot timers
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	for scheduleID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, scheduleID)
	}
	s.mu.Unlock()

	s.logger.Info("job scheduler stopped")
}
