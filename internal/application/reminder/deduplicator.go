package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/notification"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// claimTTL outlives the calendar day so a claim never expires mid-day
const claimTTL = 26 * time.Hour

// Deduplicator guarantees at most one reminder per (student, installment)
// per calendar day. The notification table is authoritative; the claim
// store is an optional fast path that also closes the gap between two
// concurrent scans that both read zero rows.
type Deduplicator struct {
	notifications  notification.Repository
	claims         shared.ClaimStore
	clock          shared.Clock
	location       *time.Location
	storageTimeout time.Duration
	logger         *zap.Logger
}

// NewDeduplicator creates a Deduplicator. claims may be nil.
func NewDeduplicator(
	notifications notification.Repository,
	claims shared.ClaimStore,
	clock shared.Clock,
	settings Settings,
	logger *zap.Logger,
) *Deduplicator {
	settings = settings.normalized()
	if clock == nil {
		clock = shared.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{
		notifications:  notifications,
		claims:         claims,
		clock:          clock,
		location:       settings.Location,
		storageTimeout: settings.StorageTimeout,
		logger:         logger,
	}
}

// AlreadySentToday reports whether a notification for the pair was created
// in [start of today, start of tomorrow)
func (d *Deduplicator) AlreadySentToday(ctx context.Context, studentID, installmentID uuid.UUID) (bool, error) {
	from, to := shared.StartOfDay(today(d.clock, d.location))

	ctx, cancel := withTimeout(ctx, d.storageTimeout)
	defer cancel()

	n, err := d.notifications.CountForInstallmentBetween(ctx, studentID, installmentID, from, to)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Claim takes today's claim for key. Without a claim store, or when the
// store fails, it reports true and the database check stands alone.
func (d *Deduplicator) Claim(ctx context.Context, key string) bool {
	if d.claims == nil {
		return true
	}
	ok, err := d.claims.Claim(ctx, d.dailyKey(key), claimTTL)
	if err != nil {
		d.logger.Warn("reminder claim failed, falling back to database check",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}
	return ok
}

// Release drops today's claim for key so a later run can retry
func (d *Deduplicator) Release(ctx context.Context, key string) {
	if d.claims == nil {
		return
	}
	if err := d.claims.Release(ctx, d.dailyKey(key)); err != nil {
		d.logger.Warn("failed to release reminder claim",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (d *Deduplicator) dailyKey(key string) string {
	return key + ":" + today(d.clock, d.location).Format("2006-01-02")
}

func installmentKey(studentID, installmentID uuid.UUID) string {
	return "reminder:" + studentID.String() + ":" + installmentID.String()
}

func feeReminderKey(ledgerID uuid.UUID) string {
	return "fee-reminder:" + ledgerID.String()
}
