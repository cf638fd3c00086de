// Package reminder finds due and overdue installments and turns them into
// in-app notifications and best-effort emails.
package reminder

import (
	"context"
	"time"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/config"
)

// Settings tune the reminder pipeline
type Settings struct {
	LateFeePerDay  int64
	Workers        int
	StorageTimeout time.Duration
	EmailTimeout   time.Duration
	CurrencyLabel  string
	Locale         string
	Location       *time.Location
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		LateFeePerDay:  fees.DefaultLateFeePerDay,
		Workers:        8,
		StorageTimeout: 5 * time.Second,
		EmailTimeout:   10 * time.Second,
		Locale:         "en",
		Location:       time.Local,
	}
}

// SettingsFrom builds Settings from the reminder config section
func SettingsFrom(cfg config.ReminderConfig) (Settings, error) {
	s := DefaultSettings()
	if cfg.LateFeePerDay > 0 {
		s.LateFeePerDay = cfg.LateFeePerDay
	}
	if cfg.Workers > 0 {
		s.Workers = cfg.Workers
	}
	if cfg.StorageTimeout > 0 {
		s.StorageTimeout = cfg.StorageTimeout
	}
	if cfg.EmailTimeout > 0 {
		s.EmailTimeout = cfg.EmailTimeout
	}
	if cfg.Locale != "" {
		s.Locale = cfg.Locale
	}
	s.CurrencyLabel = cfg.CurrencyLabel
	loc, err := cfg.Location()
	if err != nil {
		return s, err
	}
	s.Location = loc
	return s, nil
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.LateFeePerDay <= 0 {
		s.LateFeePerDay = d.LateFeePerDay
	}
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	if s.Location == nil {
		s.Location = d.Location
	}
	if s.Locale == "" {
		s.Locale = d.Locale
	}
	return s
}

// Metrics records reminder pipeline outcomes
type Metrics interface {
	ReminderSent(ctx context.Context, notificationType string)
	EmailFailed(ctx context.Context, notificationType string)
	ScanCompleted(ctx context.Context, pass string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ReminderSent(context.Context, string) {}
func (nopMetrics) EmailFailed(context.Context, string) {}
func (nopMetrics) ScanCompleted(context.Context, string, time.Duration) {}

// withTimeout bounds a single collaborator call; zero means no bound
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// today returns now in loc
func today(clock shared.Clock, loc *time.Location) time.Time {
	return clock().In(loc)
}
