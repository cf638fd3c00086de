package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/schoolfees/backend/internal/infrastructure/config"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
)

func newManualMeterProvider(t *testing.T) (*telemetry.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProvider(context.Background(),
		config.TelemetryConfig{Enabled: true, ServiceName: "fees-test"},
		nil, telemetry.WithMetricReader(reader))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{ServiceName: "fees-test"}, nil)
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewReminderMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewReminderMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestReminderMetrics_NoopMeter(t *testing.T) {
	m, err := telemetry.NewReminderMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		ctx := context.Background()
		m.ReminderSent(ctx, "FEE_REMINDER")
		m.EmailFailed(ctx, "FEE_REMINDER")
		m.ScanCompleted(ctx, "daily", time.Second)
		m.PaymentRecorded(ctx, "UPI")
		m.LateFeeAssessed(ctx, 300)
	})
}

func TestReminderMetrics_Recorded(t *testing.T) {
	mp, reader := newManualMeterProvider(t)
	m, err := telemetry.NewReminderMetrics(mp.Meter("reminder"))
	require.NoError(t, err)

	ctx := context.Background()
	m.ReminderSent(ctx, "FEE_REMINDER")
	m.ReminderSent(ctx, "OVERDUE_REMINDER")
	m.EmailFailed(ctx, "OVERDUE_REMINDER")
	m.PaymentRecorded(ctx, "CASH")
	m.LateFeeAssessed(ctx, 300)
	m.LateFeeAssessed(ctx, 0)
	m.ScanCompleted(ctx, "hourly", 1500*time.Millisecond)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumValue(t, metrics["reminders_sent_total"]))
	assert.Equal(t, int64(1), sumValue(t, metrics["reminder_email_failures_total"]))
	assert.Equal(t, int64(1), sumValue(t, metrics["fee_payments_total"]))
	assert.Equal(t, int64(300), sumValue(t, metrics["late_fee_assessed_total"]))

	hist, ok := metrics["reminder_scan_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)
}
