// Package fees holds the ledger use cases: opening a ledger, recording
// payments, editing the fee breakdown and schedule, and listing dues.
package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/domain/student"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
)

const serviceName = "LedgerService"

// PaymentMetrics records payment outcomes
type PaymentMetrics interface {
	PaymentRecorded(ctx context.Context, paymentMode string)
	LateFeeAssessed(ctx context.Context, amount int64)
}

// Option configures a LedgerService
type Option func(*LedgerService)

// WithClock sets the source of "now"
func WithClock(clock shared.Clock) Option {
	return func(s *LedgerService) {
		s.clock = clock
	}
}

// WithLocation sets the time zone that defines the calendar day
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLateFeePerDay overrides the flat daily late fee
func WithLateFeePerDay(perDay int64) Option {
	return func(s *LedgerService) {
		if perDay > 0 {
			s.lateFeePerDay = perDay
		}
	}
}

// WithEventPublisher publishes ledger events after each successful save
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(s *LedgerService) {
		s.publisher = publisher
	}
}

// WithPaymentMetrics records payment counters
func WithPaymentMetrics(m PaymentMetrics) Option {
	return func(s *LedgerService) {
		s.metrics = m
	}
}

// LedgerService handles fee ledger business operations
type LedgerService struct {
	ledgerRepo    fees.FeeLedgerRepository
	studentRepo   student.Repository
	locks         *LedgerLocks
	publisher     shared.EventPublisher
	metrics       PaymentMetrics
	clock         shared.Clock
	location      *time.Location
	lateFeePerDay int64
	logger        *zap.Logger
}

// NewLedgerService creates a new LedgerService. locks must be the same table
// the reminder scanner uses.
func NewLedgerService(
	ledgerRepo fees.FeeLedgerRepository,
	studentRepo student.Repository,
	locks *LedgerLocks,
	logger *zap.Logger,
	opts ...Option,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = NewLedgerLocks()
	}
	s := &LedgerService{
		ledgerRepo:    ledgerRepo,
		studentRepo:   studentRepo,
		locks:         locks,
		clock:         shared.SystemClock,
		location:      time.Local,
		lateFeePerDay: fees.DefaultLateFeePerDay,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today returns the current instant in the configured zone
func (s *LedgerService) today() time.Time {
	return s.clock().In(s.location)
}

// LateFeePerDay returns the configured daily late fee
func (s *LedgerService) LateFeePerDay() int64 {
	return s.lateFeePerDay
}

// Create opens a ledger for a student and academic year
func (s *LedgerService) Create(ctx context.Context, in CreateLedgerInput) (_ *LedgerResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "Create",
		telemetry.WithAttribute(telemetry.SpanAttrStudentID, in.StudentID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAcademicYear, in.AcademicYear),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if _, err := s.studentRepo.FindByID(ctx, in.StudentID); err != nil {
		return nil, err
	}

	exists, err := s.ledgerRepo.ExistsForStudentAndYear(ctx, in.StudentID, in.AcademicYear)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("a fee ledger already exists for academic year %s", in.AcademicYear))
	}

	schedule, err := toSpecs(in.Installments)
	if err != nil {
		return nil, err
	}

	ledger, err := fees.NewFeeLedger(in.StudentID, in.AcademicYear, in.breakdown(), in.InitialAmount, in.PaymentMode, schedule)
	if err != nil {
		return nil, err
	}
	now := s.today()
	ledger.CreatedAt, ledger.UpdatedAt = now, now

	if err := s.ledgerRepo.Save(ctx, ledger); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("a fee ledger already exists for academic year %s", in.AcademicYear))
		}
		return nil, err
	}
	s.publish(ctx, ledger)

	s.logger.Info("fee ledger created",
		zap.String("ledger_id", ledger.ID.String()),
		zap.String("student_id", ledger.StudentID.String()),
		zap.String("academic_year", ledger.AcademicYear),
		zap.Int64("total_fees", ledger.TotalFees()),
		zap.Int("installments", len(ledger.Installments)),
	)

	resp := ToLedgerResponse(ledger, now, s.lateFeePerDay)
	return &resp, nil
}

// GetByID returns a ledger with its schedule
func (s *LedgerService) GetByID(ctx context.Context, ledgerID uuid.UUID) (*LedgerResponse, error) {
	ledger, err := s.ledgerRepo.FindByID(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	resp := ToLedgerResponse(ledger, s.today(), s.lateFeePerDay)
	return &resp, nil
}

// ListByStudent returns every ledger of a student, newest year first
func (s *LedgerService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]LedgerResponse, error) {
	if _, err := s.studentRepo.FindByID(ctx, studentID); err != nil {
		return nil, err
	}
	ledgers, err := s.ledgerRepo.FindByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	out := make([]LedgerResponse, len(ledgers))
	for i := range ledgers {
		out[i] = ToLedgerResponse(&ledgers[i], today, s.lateFeePerDay)
	}
	return out, nil
}

// List returns a page of ledger summaries
func (s *LedgerService) List(ctx context.Context, filter LedgerListFilter) ([]LedgerListItemResponse, int64, error) {
	f := fees.LedgerFilter{
		Filter:        shared.DefaultFilter(),
		StudentID:     filter.StudentID,
		AcademicYear:  filter.AcademicYear,
		PaymentStatus: fees.PaymentStatus(filter.PaymentStatus),
	}
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.IsValid() {
		return nil, 0, shared.ValidationError("unknown payment status: " + filter.PaymentStatus)
	}

	ledgers, total, err := s.ledgerRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]LedgerListItemResponse, len(ledgers))
	for i := range ledgers {
		out[i] = ToLedgerListItemResponse(&ledgers[i])
	}
	return out, total, nil
}

// Update merges the non-null fields of in into the ledger
func (s *LedgerService) Update(ctx context.Context, ledgerID uuid.UUID, in UpdateLedgerInput) (_ *LedgerResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "Update",
		telemetry.WithAttribute(telemetry.SpanAttrLedgerID, ledgerID.String()))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	patch, err := in.patch()
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ledger, err := s.ledgerRepo.FindByID(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	if patch.AcademicYear != nil && *patch.AcademicYear != ledger.AcademicYear {
		exists, err := s.ledgerRepo.ExistsForStudentAndYear(ctx, ledger.StudentID, *patch.AcademicYear)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("a fee ledger already exists for academic year %s", *patch.AcademicYear))
		}
	}

	now := s.today()
	if err := ledger.ApplyUpdate(patch, now); err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.SaveWithLock(ctx, ledger); err != nil {
		return nil, err
	}

	s.logger.Info("fee ledger updated",
		zap.String("ledger_id", ledger.ID.String()),
		zap.Bool("schedule_replaced", patch.ReplaceInstallments),
		zap.Int64("total_fees", ledger.TotalFees()),
		zap.Int64("remaining_fees", ledger.RemainingFees()),
	)

	resp := ToLedgerResponse(ledger, now, s.lateFeePerDay)
	return &resp, nil
}

// AppendInstallment adds an installment to the end of the schedule
func (s *LedgerService) AppendInstallment(ctx context.Context, ledgerID uuid.UUID, in InstallmentInput) (*LedgerResponse, error) {
	spec, err := in.toSpec()
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ledger, err := s.ledgerRepo.FindByID(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	now := s.today()
	if _, err := ledger.AppendInstallment(spec, now); err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.SaveWithLock(ctx, ledger); err != nil {
		return nil, err
	}

	resp := ToLedgerResponse(ledger, now, s.lateFeePerDay)
	return &resp, nil
}

// RecordPayment marks one installment as paid. The payment confirmation is
// sent by the InstallmentPaid subscriber before the ledger lock is released,
// so a concurrent scan sees the installment as paid.
func (s *LedgerService) RecordPayment(ctx context.Context, ledgerID uuid.UUID, in RecordPaymentInput) (_ *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "RecordPayment",
		telemetry.WithAttribute(telemetry.SpanAttrLedgerID, ledgerID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSequence, in.InstallmentID),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	unlock, err := s.locks.Lock(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ledger, err := s.ledgerRepo.FindByID(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	inst, err := ledger.RecordPayment(in.InstallmentID, in.PaymentMode, in.TransactionReference, today, s.lateFeePerDay)
	if err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.SaveWithLock(ctx, ledger); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRecorded(ctx, in.PaymentMode)
		s.metrics.LateFeeAssessed(ctx, inst.AssessedLateFee)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, inst.TotalAmount())

	s.logger.Info("installment payment recorded",
		zap.String("ledger_id", ledger.ID.String()),
		zap.String("student_id", ledger.StudentID.String()),
		zap.String("installment_id", inst.ID.String()),
		zap.Int("sequence", inst.Sequence),
		zap.Int64("amount", inst.TotalAmount()),
		zap.Int64("late_fee", inst.AssessedLateFee),
		zap.String("payment_status", ledger.PaymentStatus().String()),
	)

	s.publish(ctx, ledger)

	return &PaymentResponse{
		Ledger:      ToLedgerResponse(ledger, today, s.lateFeePerDay),
		Installment: ToInstallmentResponse(inst, today, s.lateFeePerDay),
	}, nil
}

// Delete removes a ledger and its installments
func (s *LedgerService) Delete(ctx context.Context, ledgerID uuid.UUID) error {
	unlock, err := s.locks.Lock(ctx, ledgerID)
	if err != nil {
		return err
	}
	defer unlock()

	ledger, err := s.ledgerRepo.FindByID(ctx, ledgerID)
	if err != nil {
		return err
	}
	if err := s.ledgerRepo.Delete(ctx, ledgerID); err != nil {
		return err
	}

	ledger.ClearPendingEvents()
	ledger.Record(fees.NewFeeLedgerDeletedEvent(ledger))
	s.publish(ctx, ledger)

	s.logger.Info("fee ledger deleted",
		zap.String("ledger_id", ledger.ID.String()),
		zap.String("student_id", ledger.StudentID.String()),
		zap.String("academic_year", ledger.AcademicYear),
	)
	return nil
}

// ListDueInstallments returns every due-today or overdue installment of a
// student across all of their ledgers, with the late fee accrued so far
func (s *LedgerService) ListDueInstallments(ctx context.Context, studentID uuid.UUID) (*StudentDuesResponse, error) {
	if _, err := s.studentRepo.FindByID(ctx, studentID); err != nil {
		return nil, err
	}
	ledgers, err := s.ledgerRepo.FindByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	resp := &StudentDuesResponse{
		StudentID: studentID,
		AsOf:      today.Format(DateLayout),
		Items:     []DueInstallmentResponse{},
	}
	for i := range ledgers {
		for _, a := range ledgers[i].DueAssessments(today, s.lateFeePerDay) {
			resp.Items = append(resp.Items, DueInstallmentResponse{
				LedgerID:      ledgers[i].ID,
				AcademicYear:  ledgers[i].AcademicYear,
				DueAssessment: a,
			})
			resp.TotalDueNow += a.TotalDueNow
		}
	}
	return resp, nil
}

// publish drains the ledger's pending events onto the bus
func (s *LedgerService) publish(ctx context.Context, ledger *fees.FeeLedger) {
	events := ledger.PendingEvents()
	ledger.ClearPendingEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish ledger events",
			zap.String("ledger_id", ledger.ID.String()),
			zap.Error(err),
		)
	}
}
