package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronSchedule(t *testing.T) {
	tests := []struct {
		name         string
		cronExpr     string
		expectedHour int
		expectedMin  int
	}{
		{name: "Default 8am", cronExpr: "0 8 * * *", expectedHour: 8, expectedMin: 0},
		{name: "3:30am", cronExpr: "30 3 * * *", expectedHour: 3, expectedMin: 30},
		{name: "Midnight", cronExpr: "0 0 * * *", expectedHour: 0, expectedMin: 0},
		{name: "11pm", cronExpr: "0 23 * * *", expectedHour: 23, expectedMin: 0},
		{name: "Empty string defaults", cronExpr: "", expectedHour: 8, expectedMin: 0},
		{name: "Extra whitespace", cronExpr: "  15   4   *   *   *  ", expectedHour: 4, expectedMin: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseCronSchedule(tt.cronExpr)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHour, hour, "hour mismatch")
			assert.Equal(t, tt.expectedMin, minute, "minute mismatch")
		})
	}
}

func TestParseCronSchedule_Invalid(t *testing.T) {
	for _, expr := range []string{"5", "60 8 * * *", "0 24 * * *", "*/5 8 * * *", "0 x * * *"} {
		t.Run(expr, func(t *testing.T) {
			_, _, err := ParseCronSchedule(expr)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
