package timeparser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWallClock parses a wall-clock time of day in "HH:MM" form
func ParseWallClock(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse wall-clock time '%s': %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

// CronDaysOfWeek converts a comma-separated Monday-based day list
// (0=Monday .. 6=Sunday, as stored in schedule rows) to a cron
// day-of-week field, which is Sunday-based. An empty list means every day.
func CronDaysOfWeek(days string) (string, error) {
	days = strings.TrimSpace(days)
	if days == "" {
		return "*", nil
	}

	parts := strings.Split(days, ",")
	converted := make([]string, 0, len(parts))
	for _, part := range parts {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || day < 0 || day > 6 {
			return "", fmt.Errorf("invalid day of week '%s'", part)
		}
		converted = append(converted, strconv.Itoa((day+1)%7))
	}

	return strings.Join(converted, ","), nil
}

// CronSpec builds a five-field cron spec firing daily at the given
// wall-clock time, optionally restricted to certain days of the week
func CronSpec(wallClock string, daysOfWeek *string) (string, error) {
	hour, minute, err := ParseWallClock(wallClock)
	if err != nil {
		return "", err
	}

	dow := "*"
	if daysOfWeek != nil {
		dow, err = CronDaysOfWeek(*daysOfWeek)
		if err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%d %d * * %s", minute, hour, dow), nil
}
