package db

import (
	"time"

	"github.com/google/uuid"
)

// Schedule types
const (
	ScheduleDaily = "daily"
	ScheduleTimer = "timer"
)

// Threshold reset periods
const (
	ResetDaily   = "daily"
	ResetWeekly  = "weekly"
	ResetMonthly = "monthly"
)

// Relay actions recorded in the schedule log
const (
	ActionOn  = "ON"
	ActionOff = "OFF"
)

// Schedule represents a relay schedule in the database.
// Daily schedules carry StartTime/EndTime (and optionally DaysOfWeek);
// timer schedules carry DurationSeconds.
type Schedule struct {
	ID              uuid.UUID
	ClientID        string
	Type            string
	StartTime       *string
	EndTime         *string
	DurationSeconds *int
	DaysOfWeek      *string
	Enabled         bool
	CreatedAt       time.Time
}

// Threshold represents a per-device energy budget. At most one row
// exists per client_id.
type Threshold struct {
	ID          uuid.UUID
	ClientID    string
	LimitKWh    float64
	ResetPeriod string
	Enabled     bool
	LastReset   time.Time
	CreatedAt   time.Time
}

// EnergyReading is a cumulative counter sample reported by a device.
// Rows are append-only.
type EnergyReading struct {
	ID        int64
	ClientID  string
	EnergyKWh float64
	Timestamp time.Time
}

// ScheduleExecution is an audit record of a single job firing.
type ScheduleExecution struct {
	ID         int64
	ScheduleID uuid.UUID
	Action     string
	ExecutedAt time.Time
}
