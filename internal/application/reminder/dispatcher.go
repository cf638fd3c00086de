package reminder

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appfees "github.com/schoolfees/backend/internal/application/fees"
	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/notification"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/domain/student"
	"github.com/schoolfees/backend/internal/infrastructure/email"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
)

const dispatcherService = "ReminderDispatcher"

type options struct {
	clock   shared.Clock
	metrics Metrics
	locks   *appfees.LedgerLocks
}

// Option configures a Dispatcher or Scanner
type Option func(*options)

// WithClock sets the source of "now"
func WithClock(clock shared.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics records reminder counters
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLedgerLocks shares the per-ledger lock table with the ledger service
func WithLedgerLocks(locks *appfees.LedgerLocks) Option {
	return func(o *options) {
		o.locks = locks
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: shared.SystemClock, metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locks == nil {
		o.locks = appfees.NewLedgerLocks()
	}
	return o
}

// PaymentConfirmation describes a recorded payment
type PaymentConfirmation struct {
	StudentID            uuid.UUID
	LedgerID             uuid.UUID
	InstallmentID        uuid.UUID
	Amount               int64
	LateFee              int64
	PaymentMode          string
	TransactionReference string
	PaidDate             time.Time
}

// Dispatcher creates notification records and forwards them to email.
// Every send persists the in-app record first; email is best effort and a
// delivery failure never fails the send.
type Dispatcher struct {
	ledgers       fees.FeeLedgerRepository
	students      student.Repository
	notifications notification.Repository
	sender        email.Sender
	dedup         *Deduplicator
	settings      Settings
	format        *Formatter
	clock         shared.Clock
	metrics       Metrics
	locks         *appfees.LedgerLocks
	logger        *zap.Logger
}

// NewDispatcher creates a Dispatcher. dedup may be nil, in which case bulk
// fee reminders are not claimed per day.
func NewDispatcher(
	ledgers fees.FeeLedgerRepository,
	students student.Repository,
	notifications notification.Repository,
	sender email.Sender,
	dedup *Deduplicator,
	settings Settings,
	logger *zap.Logger,
	opts ...Option,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = email.NewLogSender(logger)
	}
	settings = settings.normalized()
	o := buildOptions(opts)
	return &Dispatcher{
		ledgers:       ledgers,
		students:      students,
		notifications: notifications,
		sender:        sender,
		dedup:         dedup,
		settings:      settings,
		format:        NewFormatter(settings.Locale, settings.CurrencyLabel),
		clock:         o.clock,
		metrics:       o.metrics,
		locks:         o.locks,
		logger:        logger,
	}
}

// SendFeeReminder reminds a student of the outstanding balance on a ledger.
// An empty academicYear selects the most recent ledger. Fails with NotFound
// when there is no ledger and with ErrNoPendingFees when it is fully paid.
func (d *Dispatcher) SendFeeReminder(ctx context.Context, studentID uuid.UUID, academicYear string) (_ *NotificationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, dispatcherService, "SendFeeReminder",
		telemetry.WithAttribute(telemetry.SpanAttrStudentID, studentID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrNotificationType, string(notification.TypeFeeReminder)),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	st, err := d.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	ledger, err := d.loadLedger(ctx, studentID, academicYear)
	if err != nil {
		return nil, err
	}
	n, err := d.sendFeeReminder(ctx, st, ledger)
	if err != nil {
		return nil, err
	}
	resp := ToNotificationResponse(n)
	return &resp, nil
}

func (d *Dispatcher) sendFeeReminder(ctx context.Context, st *student.Student, ledger *fees.FeeLedger) (*notification.Notification, error) {
	if ledger.IsFullyPaid() {
		return nil, shared.NewDomainError(shared.CodeNoPendingFees,
			fmt.Sprintf("no pending fees for academic year %s", ledger.AcademicYear))
	}

	c := d.format.feeReminder(st, ledger)
	remaining := ledger.RemainingFees()
	p := notification.Params{
		StudentID: st.ID,
		LedgerID:  &ledger.ID,
		Type:      notification.TypeFeeReminder,
		Title:     c.title,
		Message:   c.text,
		AmountDue: &remaining,
	}
	if next := ledger.NextUnpaidInstallment(); next != nil {
		p.DueDate = next.DueDate
	}
	return d.deliver(ctx, st, p)
}

// SendOverdueReminder reminds a student that an installment is past due.
// The amount due includes the late fee accrued so far.
func (d *Dispatcher) SendOverdueReminder(ctx context.Context, st *student.Student, ledger *fees.FeeLedger, a fees.DueAssessment) (*notification.Notification, error) {
	c := d.format.overdueReminder(st, ledger, a)
	amount, lateFee, due := a.TotalDueNow, a.LateFee, a.DueDate
	return d.deliver(ctx, st, notification.Params{
		StudentID:     st.ID,
		LedgerID:      &ledger.ID,
		InstallmentID: &a.InstallmentID,
		Type:          notification.TypeOverdueReminder,
		Title:         c.title,
		Message:       c.text,
		AmountDue:     &amount,
		LateFee:       &lateFee,
		DueDate:       &due,
	})
}

// SendDueTodayReminder reminds a student that an installment is due today
func (d *Dispatcher) SendDueTodayReminder(ctx context.Context, st *student.Student, ledger *fees.FeeLedger, a fees.DueAssessment) (*notification.Notification, error) {
	c := d.format.dueTodayReminder(st, ledger, a)
	amount, due := a.DueAmount, a.DueDate
	return d.deliver(ctx, st, notification.Params{
		StudentID:     st.ID,
		LedgerID:      &ledger.ID,
		InstallmentID: &a.InstallmentID,
		Type:          notification.TypeDueTodayReminder,
		Title:         c.title,
		Message:       c.text,
		AmountDue:     &amount,
		DueDate:       &due,
	})
}

// SendPaymentConfirmation acknowledges a recorded payment with the balance
// left after it and the next due date, if any
func (d *Dispatcher) SendPaymentConfirmation(ctx context.Context, p PaymentConfirmation) (_ *notification.Notification, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, dispatcherService, "SendPaymentConfirmation",
		telemetry.WithAttribute(telemetry.SpanAttrLedgerID, p.LedgerID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrInstallmentID, p.InstallmentID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, p.Amount),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	st, err := d.loadStudent(ctx, p.StudentID)
	if err != nil {
		return nil, err
	}
	sctx, cancel := withTimeout(ctx, d.settings.StorageTimeout)
	ledger, err := d.ledgers.FindByID(sctx, p.LedgerID)
	cancel()
	if err != nil {
		return nil, err
	}

	c := d.format.paymentConfirmation(st, ledger, p)
	remaining := ledger.RemainingFees()
	params := notification.Params{
		StudentID:     st.ID,
		LedgerID:      &ledger.ID,
		InstallmentID: &p.InstallmentID,
		Type:          notification.TypePaymentConfirmation,
		Title:         c.title,
		Message:       c.text,
		AmountDue:     &remaining,
	}
	if p.LateFee > 0 {
		lateFee := p.LateFee
		params.LateFee = &lateFee
	}
	if next := ledger.NextUnpaidInstallment(); next != nil {
		params.DueDate = next.DueDate
	}
	return d.deliver(ctx, st, params)
}

// SendBulkFeeReminders sends a fee reminder for every ledger with a balance.
// Ledgers are handled concurrently on a bounded pool; one failure never
// stops the rest. The returned error is non-nil only when the ledger listing
// itself fails or ctx ends before every ledger was scheduled.
func (d *Dispatcher) SendBulkFeeReminders(ctx context.Context) (_ Summary, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, dispatcherService, "SendBulkFeeReminders")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	sctx, cancel := withTimeout(ctx, d.settings.StorageTimeout)
	refs, err := d.ledgers.FindRefsWithOutstanding(sctx)
	cancel()
	if err != nil {
		return Summary{}, fmt.Errorf("list ledgers with outstanding fees: %w", err)
	}

	col := newCollector()
	var g errgroup.Group
	g.SetLimit(d.settings.Workers)
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			d.bulkFeeReminder(ctx, ref, col)
			return nil
		})
	}
	_ = g.Wait()

	summary := col.summary()
	telemetry.SetAttributes(span,
		"reminder.processed", summary.Processed,
		"reminder.sent", summary.Sent,
		"reminder.failed", summary.Failed,
	)
	d.logger.Info("bulk fee reminders finished",
		zap.Int("ledgers", len(refs)),
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, ctx.Err()
}

func (d *Dispatcher) bulkFeeReminder(ctx context.Context, ref fees.LedgerRef, col *collector) {
	col.processed()

	key := feeReminderKey(ref.LedgerID)
	if d.dedup != nil && !d.dedup.Claim(ctx, key) {
		col.skipped()
		return
	}

	err := d.feeReminderForRef(ctx, ref)
	switch {
	case err == nil:
		col.sent()
		return
	case errors.Is(err, shared.ErrNoPendingFees):
		// paid in full between the listing and the send
		col.skipped()
	default:
		col.failed(Failure{StudentID: ref.StudentID, LedgerID: ref.LedgerID, Reason: err.Error()})
		d.logger.Warn("fee reminder failed",
			zap.String("student_id", ref.StudentID.String()),
			zap.String("ledger_id", ref.LedgerID.String()),
			zap.Error(err),
		)
	}
	if d.dedup != nil {
		d.dedup.Release(ctx, key)
	}
}

func (d *Dispatcher) feeReminderForRef(ctx context.Context, ref fees.LedgerRef) error {
	unlock, err := d.locks.Lock(ctx, ref.LedgerID)
	if err != nil {
		return err
	}
	defer unlock()

	st, err := d.loadStudent(ctx, ref.StudentID)
	if err != nil {
		return err
	}
	sctx, cancel := withTimeout(ctx, d.settings.StorageTimeout)
	ledger, err := d.ledgers.FindByID(sctx, ref.LedgerID)
	cancel()
	if err != nil {
		return err
	}
	_, err = d.sendFeeReminder(ctx, st, ledger)
	return err
}

// SendCustom sends an ad hoc CUSTOM or EXAM_SCHEDULED message
func (d *Dispatcher) SendCustom(ctx context.Context, in SendNotificationInput) (*NotificationResponse, error) {
	typ := notification.Type(in.Type)
	if typ != notification.TypeCustom && typ != notification.TypeExamScheduled {
		return nil, shared.ValidationError("only CUSTOM and EXAM_SCHEDULED notifications can be sent directly")
	}
	st, err := d.loadStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	p := notification.Params{
		StudentID: st.ID,
		Type:      typ,
		Title:     in.Title,
		Message:   in.Message,
	}
	if in.DueDate != nil {
		due, err := time.Parse(dateLayout, *in.DueDate)
		if err != nil {
			return nil, shared.ValidationError("due_date must be YYYY-MM-DD")
		}
		p.DueDate = &due
	}
	n, err := d.deliver(ctx, st, p)
	if err != nil {
		return nil, err
	}
	resp := ToNotificationResponse(n)
	return &resp, nil
}

// MarkAsRead acknowledges one notification. Acknowledging twice is a no-op.
func (d *Dispatcher) MarkAsRead(ctx context.Context, id uuid.UUID) (*NotificationResponse, error) {
	n, err := d.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.MarkRead(d.clock()) {
		if err := d.notifications.Save(ctx, n); err != nil {
			return nil, err
		}
	}
	resp := ToNotificationResponse(n)
	return &resp, nil
}

// MarkAllAsRead acknowledges every unread notification of a student
func (d *Dispatcher) MarkAllAsRead(ctx context.Context, studentID uuid.UUID) (int64, error) {
	if _, err := d.students.FindByID(ctx, studentID); err != nil {
		return 0, err
	}
	updated, err := d.notifications.MarkAllRead(ctx, studentID, d.clock())
	if err != nil {
		return 0, err
	}
	d.logger.Debug("notifications marked read",
		zap.String("student_id", studentID.String()),
		zap.Int64("updated", updated),
	)
	return updated, nil
}

// ListNotifications returns a page of a student's notifications, newest first
func (d *Dispatcher) ListNotifications(ctx context.Context, studentID uuid.UUID, filter NotificationListFilter) ([]NotificationResponse, int64, error) {
	f := notification.Filter{
		Filter:     shared.DefaultFilter(),
		UnreadOnly: filter.UnreadOnly,
		Type:       notification.Type(filter.Type),
	}
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if f.Type != "" && !f.Type.IsValid() {
		return nil, 0, shared.ValidationError("unknown notification type: " + filter.Type)
	}

	items, total, err := d.notifications.FindByStudent(ctx, studentID, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]NotificationResponse, len(items))
	for i := range items {
		out[i] = ToNotificationResponse(&items[i])
	}
	return out, total, nil
}

// UnreadCount returns how many notifications the student has not read
func (d *Dispatcher) UnreadCount(ctx context.Context, studentID uuid.UUID) (int64, error) {
	return d.notifications.CountUnread(ctx, studentID)
}

// deliver persists a SENT notification and then attempts the email
func (d *Dispatcher) deliver(ctx context.Context, st *student.Student, p notification.Params) (*notification.Notification, error) {
	now := d.clock()
	n, err := notification.New(p, now)
	if err != nil {
		return nil, err
	}
	if err := n.MarkSent(now); err != nil {
		return nil, err
	}

	sctx, cancel := withTimeout(ctx, d.settings.StorageTimeout)
	err = d.notifications.Save(sctx, n)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("save notification: %w", err)
	}
	d.metrics.ReminderSent(ctx, string(n.Type))

	d.logger.Info("notification sent",
		zap.String("notification_id", n.ID.String()),
		zap.String("student_id", st.ID.String()),
		zap.String("notification_type", string(n.Type)),
	)

	d.email(ctx, st, n)
	return n, nil
}

// email forwards n to the student's reminder address. Failures are logged
// and counted, never returned.
func (d *Dispatcher) email(ctx context.Context, st *student.Student, n *notification.Notification) {
	addr := st.ReminderEmail()
	if addr == "" {
		d.logger.Debug("no email address, in-app only",
			zap.String("notification_id", n.ID.String()),
			zap.String("student_id", st.ID.String()),
		)
		return
	}

	ectx, cancel := withTimeout(ctx, d.settings.EmailTimeout)
	defer cancel()
	err := d.sender.Send(ectx, email.Message{
		To:      mail.Address{Name: st.Name, Address: addr},
		Subject: n.Title,
		Text:    n.Message,
	})
	if err == nil {
		return
	}

	err = fmt.Errorf("%w: %w", shared.ErrExternalDispatch, err)
	d.metrics.EmailFailed(ctx, string(n.Type))
	d.logger.Warn("reminder email failed",
		zap.String("notification_id", n.ID.String()),
		zap.String("student_id", st.ID.String()),
		zap.String("notification_type", string(n.Type)),
		zap.Error(err),
	)
}

func (d *Dispatcher) loadStudent(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	ctx, cancel := withTimeout(ctx, d.settings.StorageTimeout)
	defer cancel()
	return d.students.FindByID(ctx, id)
}

func (d *Dispatcher) loadLedger(ctx context.Context, studentID uuid.UUID, academicYear string) (*fees.FeeLedger, error) {
	ctx, cancel := withTimeout(ctx, d.settings.StorageTimeout)
	defer cancel()

	var (
		ledger *fees.FeeLedger
		err    error
	)
	if academicYear == "" {
		ledger, err = d.ledgers.FindLatestByStudent(ctx, studentID)
	} else {
		ledger, err = d.ledgers.FindByStudentAndYear(ctx, studentID, academicYear)
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NotFoundError("no fee ledger found for student")
	}
	return ledger, err
}
