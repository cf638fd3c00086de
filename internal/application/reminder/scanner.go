package reminder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appfees "github.com/schoolfees/backend/internal/application/fees"
	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/domain/student"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
)

// Scan pass names used for metrics and spans
const (
	PassHourly = "hourly"
	PassDaily  = "daily"
)

const scannerService = "ReminderScanner"

// Scanner drives the two reminder passes. The hourly pass finds installments
// that are due today or overdue and reminds each at most once per day; the
// daily pass sends a fee reminder to every ledger with a balance.
type Scanner struct {
	ledgers    fees.FeeLedgerRepository
	students   student.Repository
	dispatcher *Dispatcher
	dedup      *Deduplicator
	settings   Settings
	clock      shared.Clock
	metrics    Metrics
	locks      *appfees.LedgerLocks
	logger     *zap.Logger
}

// NewScanner creates a Scanner. Pass the same LedgerLocks the ledger
// service uses so a payment and a reminder for one ledger never interleave.
func NewScanner(
	ledgers fees.FeeLedgerRepository,
	students student.Repository,
	dispatcher *Dispatcher,
	dedup *Deduplicator,
	settings Settings,
	logger *zap.Logger,
	opts ...Option,
) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(opts)
	return &Scanner{
		ledgers:    ledgers,
		students:   students,
		dispatcher: dispatcher,
		dedup:      dedup,
		settings:   settings.normalized(),
		clock:      o.clock,
		metrics:    o.metrics,
		locks:      o.locks,
		logger:     logger,
	}
}

// ScanDueInstallments runs the hourly pass. Processed counts installments
// that were due today or overdue.
func (s *Scanner) ScanDueInstallments(ctx context.Context) (_ Summary, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, scannerService, "ScanDueInstallments",
		telemetry.WithAttribute(telemetry.SpanAttrScanPass, PassHourly))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	start := s.clock()
	day := today(s.clock, s.settings.Location)

	sctx, cancel := withTimeout(ctx, s.settings.StorageTimeout)
	refs, err := s.ledgers.FindRefsWithUnpaidDueBy(sctx, day)
	cancel()
	if err != nil {
		return Summary{}, fmt.Errorf("list ledgers with due installments: %w", err)
	}

	col := newCollector()
	var g errgroup.Group
	g.SetLimit(s.settings.Workers)
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.scanLedger(ctx, ref, col)
			return nil
		})
	}
	_ = g.Wait()

	summary := col.summary()
	s.metrics.ScanCompleted(ctx, PassHourly, s.clock().Sub(start))
	s.logger.Info("due installment scan finished",
		zap.String("day", day.Format(dateLayout)),
		zap.Int("ledgers", len(refs)),
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, ctx.Err()
}

// scanLedger holds the ledger lock while it reloads the ledger and sends
// its reminders, so an installment paid meanwhile is seen as paid.
func (s *Scanner) scanLedger(ctx context.Context, ref fees.LedgerRef, col *collector) {
	fail := func(err error) {
		col.failed(Failure{StudentID: ref.StudentID, LedgerID: ref.LedgerID, Reason: err.Error()})
		s.logger.Warn("ledger scan failed",
			zap.String("ledger_id", ref.LedgerID.String()),
			zap.String("student_id", ref.StudentID.String()),
			zap.Error(err),
		)
	}

	unlock, err := s.locks.Lock(ctx, ref.LedgerID)
	if err != nil {
		fail(err)
		return
	}
	defer unlock()

	sctx, cancel := withTimeout(ctx, s.settings.StorageTimeout)
	ledger, err := s.ledgers.FindByID(sctx, ref.LedgerID)
	cancel()
	if errors.Is(err, shared.ErrNotFound) {
		// deleted since the listing
		return
	}
	if err != nil {
		fail(err)
		return
	}

	day := today(s.clock, s.settings.Location)
	due := ledger.DueAssessments(day, s.settings.LateFeePerDay)
	if len(due) == 0 {
		return
	}

	sctx, cancel = withTimeout(ctx, s.settings.StorageTimeout)
	st, err := s.students.FindByID(sctx, ledger.StudentID)
	cancel()
	if err != nil {
		fail(err)
		return
	}

	for _, a := range due {
		col.processed()
		s.remind(ctx, st, ledger, a, col)
	}
}

func (s *Scanner) remind(ctx context.Context, st *student.Student, ledger *fees.FeeLedger, a fees.DueAssessment, col *collector) {
	instID := a.InstallmentID
	fail := func(err error) {
		col.failed(Failure{StudentID: st.ID, LedgerID: ledger.ID, InstallmentID: &instID, Reason: err.Error()})
		s.logger.Warn("installment reminder failed",
			zap.String("ledger_id", ledger.ID.String()),
			zap.String("installment_id", instID.String()),
			zap.Int("sequence", a.Sequence),
			zap.Error(err),
		)
	}

	sent, err := s.dedup.AlreadySentToday(ctx, st.ID, a.InstallmentID)
	if err != nil {
		fail(err)
		return
	}
	if sent {
		col.skipped()
		return
	}
	key := installmentKey(st.ID, a.InstallmentID)
	if !s.dedup.Claim(ctx, key) {
		col.skipped()
		return
	}

	switch a.Status {
	case fees.InstallmentStatusOverdue:
		_, err = s.dispatcher.SendOverdueReminder(ctx, st, ledger, a)
	case fees.InstallmentStatusDueToday:
		_, err = s.dispatcher.SendDueTodayReminder(ctx, st, ledger, a)
	default:
		err = fmt.Errorf("unexpected installment status %s", a.Status)
	}
	if err != nil {
		s.dedup.Release(ctx, key)
		fail(err)
		return
	}
	col.sent()
}

// RunDailySweep runs the daily pass
func (s *Scanner) RunDailySweep(ctx context.Context) (Summary, error) {
	start := s.clock()
	summary, err := s.dispatcher.SendBulkFeeReminders(ctx)
	s.metrics.ScanCompleted(ctx, PassDaily, s.clock().Sub(start))
	return summary, err
}
