package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedEnv = []string{
	"FEES_APP_NAME",
	"FEES_APP_ENV",
	"FEES_APP_PORT",
	"FEES_DATABASE_DRIVER",
	"FEES_DATABASE_HOST",
	"FEES_DATABASE_PORT",
	"FEES_DATABASE_PASSWORD",
	"FEES_DATABASE_SSLMODE",
	"FEES_DATABASE_MAX_OPEN_CONNS",
	"FEES_DATABASE_MAX_IDLE_CONNS",
	"FEES_JWT_SECRET",
	"FEES_REMINDER_LATE_FEE_PER_DAY",
	"FEES_REMINDER_WORKERS",
	"FEES_REMINDER_TIMEZONE",
	"FEES_EMAIL_PROVIDER",
	"FEES_EMAIL_SENDGRID_API_KEY",
	"FEES_EMAIL_FROM_ADDRESS",
	"FEES_SCHEDULER_DAILY_CRON_SCHEDULE",
	"FEES_SCHEDULER_HOURLY_SCAN_ENABLED",
	"FEES_TELEMETRY_SAMPLING_RATIO",
}

// clearEnv blanks every managed variable for the duration of the test.
// viper ignores empty environment values, so blank behaves as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedEnv {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fees-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "fees", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, int64(100), cfg.Reminder.LateFeePerDay)
	assert.Equal(t, 8, cfg.Reminder.Workers)
	assert.Equal(t, 5*time.Second, cfg.Reminder.StorageTimeout)
	assert.Equal(t, 10*time.Second, cfg.Reminder.EmailTimeout)
	assert.Equal(t, "log", cfg.Email.Provider)
	assert.Equal(t, "0 8 * * *", cfg.Scheduler.DailyCronSchedule)
	assert.True(t, cfg.Scheduler.HourlyScanEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FEES_APP_PORT", "9000")
	t.Setenv("FEES_DATABASE_DRIVER", "sqlite")
	t.Setenv("FEES_REMINDER_LATE_FEE_PER_DAY", "50")
	t.Setenv("FEES_REMINDER_WORKERS", "4")
	t.Setenv("FEES_SCHEDULER_DAILY_CRON_SCHEDULE", "30 7 * * *")
	t.Setenv("FEES_SCHEDULER_HOURLY_SCAN_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(50), cfg.Reminder.LateFeePerDay)
	assert.Equal(t, 4, cfg.Reminder.Workers)
	assert.Equal(t, "30 7 * * *", cfg.Scheduler.DailyCronSchedule)
	assert.False(t, cfg.Scheduler.HourlyScanEnabled)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown driver",
			env:     map[string]string{"FEES_DATABASE_DRIVER": "mysql"},
			wantErr: "database.driver",
		},
		{
			name:    "idle exceeds open",
			env:     map[string]string{"FEES_DATABASE_MAX_OPEN_CONNS": "10", "FEES_DATABASE_MAX_IDLE_CONNS": "20"},
			wantErr: "cannot exceed",
		},
		{
			name:    "negative late fee",
			env:     map[string]string{"FEES_REMINDER_LATE_FEE_PER_DAY": "-1"},
			wantErr: "late_fee_per_day",
		},
		{
			name:    "unknown timezone",
			env:     map[string]string{"FEES_REMINDER_TIMEZONE": "Mars/Olympus"},
			wantErr: "reminder.timezone",
		},
		{
			name:    "sendgrid without key",
			env:     map[string]string{"FEES_EMAIL_PROVIDER": "sendgrid"},
			wantErr: "sendgrid_api_key",
		},
		{
			name:    "bad cron",
			env:     map[string]string{"FEES_SCHEDULER_DAILY_CRON_SCHEDULE": "0 25 * * *"},
			wantErr: "invalid hour",
		},
		{
			name:    "sampling ratio out of range",
			env:     map[string]string{"FEES_TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "sampling_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FEES_APP_ENV", "production")
		t.Setenv("FEES_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("FEES_DATABASE_PASSWORD", "secure-password")
		t.Setenv("FEES_DATABASE_SSLMODE", "require")
	}

	t.Run("passes with valid production config", func(t *testing.T) {
		setValidProductionBase(t)
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires jwt secret length", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FEES_JWT_SECRET", "short")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
	})

	t.Run("requires ssl for postgres", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FEES_DATABASE_SSLMODE", "disable")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")
	})

	t.Run("sqlite skips postgres checks", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FEES_DATABASE_DRIVER", "sqlite")
		t.Setenv("FEES_DATABASE_SSLMODE", "disable")
		_, err := Load()
		require.NoError(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass@word#123",
		DBName:   "fees",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "pass%40word%23123")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestReminderConfig_Location(t *testing.T) {
	loc, err := ReminderConfig{Timezone: "Asia/Kolkata"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	loc, err = ReminderConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
