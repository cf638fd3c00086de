package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultDailyHour   = 8
	defaultDailyMinute = 0
)

// ParseCronSchedule extracts hour and minute from a daily "minute hour * * *"
// expression. Only fixed minute and hour fields are supported; an empty
// expression yields 08:00.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	parts := strings.Fields(cronExpr)
	if len(parts) == 0 {
		return defaultDailyHour, defaultDailyMinute, nil
	}
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: cron expression %q needs minute and hour", ErrInvalidConfig, cronExpr)
	}

	minute, err = parseField(parts[0], 59)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: minute: %v", ErrInvalidConfig, err)
	}
	hour, err = parseField(parts[1], 23)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: hour: %v", ErrInvalidConfig, err)
	}
	return hour, minute, nil
}

func parseField(s string, max int) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if val < 0 || val > max {
		return 0, fmt.Errorf("%d out of range 0-%d", val, max)
	}
	return val, nil
}
