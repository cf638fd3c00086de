package fees

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypeFeeLedgerCreated = "FeeLedgerCreated"
	EventTypeFeeLedgerDeleted = "FeeLedgerDeleted"
	EventTypeInstallmentPaid  = "InstallmentPaid"
)

// FeeLedgerCreatedEvent is raised when a ledger is created for a student
type FeeLedgerCreatedEvent struct {
	shared.BaseDomainEvent
	LedgerID     uuid.UUID `json:"ledger_id"`
	StudentID    uuid.UUID `json:"student_id"`
	AcademicYear string    `json:"academic_year"`
	TotalFees    int64     `json:"total_fees"`
}

// NewFeeLedgerCreatedEvent creates a new FeeLedgerCreatedEvent
func NewFeeLedgerCreatedEvent(l *FeeLedger) *FeeLedgerCreatedEvent {
	return &FeeLedgerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFeeLedgerCreated, l.ID),
		LedgerID:        l.ID,
		StudentID:       l.StudentID,
		AcademicYear:    l.AcademicYear,
		TotalFees:       l.TotalFees(),
	}
}

// InstallmentPaidEvent is raised when a payment is recorded against an installment
type InstallmentPaidEvent struct {
	shared.BaseDomainEvent
	LedgerID             uuid.UUID `json:"ledger_id"`
	StudentID            uuid.UUID `json:"student_id"`
	AcademicYear         string    `json:"academic_year"`
	InstallmentID        uuid.UUID `json:"installment_id"`
	Sequence             int       `json:"sequence"`
	Amount               int64     `json:"amount"`
	LateFee              int64     `json:"late_fee"`
	PaymentMode          string    `json:"payment_mode"`
	TransactionReference string    `json:"transaction_reference"`
	PaidDate             time.Time `json:"paid_date"`
	RemainingFees        int64     `json:"remaining_fees"`
}

// NewInstallmentPaidEvent creates a new InstallmentPaidEvent
func NewInstallmentPaidEvent(l *FeeLedger, inst *Installment) *InstallmentPaidEvent {
	e := &InstallmentPaidEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeInstallmentPaid, l.ID),
		LedgerID:             l.ID,
		StudentID:            l.StudentID,
		AcademicYear:         l.AcademicYear,
		InstallmentID:        inst.ID,
		Sequence:             inst.Sequence,
		Amount:               inst.TotalAmount(),
		LateFee:              inst.AssessedLateFee,
		PaymentMode:          inst.PaymentMode,
		TransactionReference: inst.TransactionReference,
		RemainingFees:        l.RemainingFees(),
	}
	if inst.PaidDate != nil {
		e.PaidDate = *inst.PaidDate
	}
	return e
}

// FeeLedgerDeletedEvent is raised when a ledger is removed administratively
type FeeLedgerDeletedEvent struct {
	shared.BaseDomainEvent
	LedgerID     uuid.UUID `json:"ledger_id"`
	StudentID    uuid.UUID `json:"student_id"`
	AcademicYear string    `json:"academic_year"`
}

// NewFeeLedgerDeletedEvent creates a new FeeLedgerDeletedEvent
func NewFeeLedgerDeletedEvent(l *FeeLedger) *FeeLedgerDeletedEvent {
	return &FeeLedgerDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFeeLedgerDeleted, l.ID),
		LedgerID:        l.ID,
		StudentID:       l.StudentID,
		AcademicYear:    l.AcademicYear,
	}
}
