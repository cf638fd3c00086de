package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when an instrument set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// ReminderMetrics holds the instruments for the ledger and reminder pipeline.
type ReminderMetrics struct {
	remindersSent   *Counter
	emailFailures   *Counter
	scanDuration    *Histogram
	payments        *Counter
	lateFeeAssessed *Counter
}

// NewReminderMetrics registers the reminder instruments on meter.
func NewReminderMetrics(meter metric.Meter) (*ReminderMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReminderMetrics{}
	var err error

	if m.remindersSent, err = NewCounter(meter,
		"reminders_sent_total",
		"Notifications persisted by the reminder dispatcher",
		"{notifications}",
	); err != nil {
		return nil, err
	}
	if m.emailFailures, err = NewCounter(meter,
		"reminder_email_failures_total",
		"Reminder emails the provider rejected or never acknowledged",
		"{emails}",
	); err != nil {
		return nil, err
	}
	if m.scanDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "reminder_scan_duration_seconds",
		Description: "Wall time of a reminder pass over all ledgers",
		Unit:        "s",
		Boundaries:  ScanDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.payments, err = NewCounter(meter,
		"fee_payments_total",
		"Installment payments recorded",
		"{payments}",
	); err != nil {
		return nil, err
	}
	if m.lateFeeAssessed, err = NewCounter(meter,
		"late_fee_assessed_total",
		"Late fee snapshotted on installments paid after their due date",
		"{currency_units}",
	); err != nil {
		return nil, err
	}

	return m, nil
}

// ReminderSent counts one persisted notification of the given type
func (m *ReminderMetrics) ReminderSent(ctx context.Context, notificationType string) {
	m.remindersSent.Inc(ctx, AttrNotificationType.String(notificationType))
}

// EmailFailed counts one failed email dispatch
func (m *ReminderMetrics) EmailFailed(ctx context.Context, notificationType string) {
	m.emailFailures.Inc(ctx, AttrNotificationType.String(notificationType))
}

// ScanCompleted records how long a daily or hourly pass took
func (m *ReminderMetrics) ScanCompleted(ctx context.Context, pass string, d time.Duration) {
	m.scanDuration.RecordDuration(ctx, d, AttrScanPass.String(pass))
}

// PaymentRecorded counts one installment payment
func (m *ReminderMetrics) PaymentRecorded(ctx context.Context, paymentMode string) {
	m.payments.Inc(ctx, AttrPaymentMode.String(paymentMode))
}

// LateFeeAssessed adds the late fee snapshotted on a late payment
func (m *ReminderMetrics) LateFeeAssessed(ctx context.Context, amount int64) {
	if amount <= 0 {
		return
	}
	m.lateFeeAssessed.Add(ctx, amount)
}
