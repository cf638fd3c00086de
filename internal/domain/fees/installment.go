package fees

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// DefaultLateFeePerDay is the flat late fee charged per calendar day overdue
const DefaultLateFeePerDay int64 = 100

// InstallmentStatus represents the status of an installment on a given day
type InstallmentStatus string

const (
	InstallmentStatusPending  InstallmentStatus = "PENDING"
	InstallmentStatusDueToday InstallmentStatus = "DUE_TODAY"
	InstallmentStatusOverdue  InstallmentStatus = "OVERDUE"
	InstallmentStatusPaid     InstallmentStatus = "PAID"
)

// IsValid checks if the status is a valid InstallmentStatus
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusDueToday, InstallmentStatusOverdue, InstallmentStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of InstallmentStatus
func (s InstallmentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s InstallmentStatus) IsTerminal() bool {
	return s == InstallmentStatusPaid
}

// InstallmentSpec is the caller-supplied description of one scheduled installment
type InstallmentSpec struct {
	Sequence    int
	Amount      int64
	AddonAmount int64
	DueDate     *time.Time
	Remarks     string
}

func (s InstallmentSpec) validate() error {
	if s.Sequence <= 0 {
		return shared.ValidationError("installment id must be positive")
	}
	if s.Amount < 0 {
		return shared.ValidationError(fmt.Sprintf("installment %d: amount cannot be negative", s.Sequence))
	}
	if s.AddonAmount < 0 {
		return shared.ValidationError(fmt.Sprintf("installment %d: addon amount cannot be negative", s.Sequence))
	}
	return nil
}

// Installment is a single payable unit of a fee ledger.
// Status is never stored except through PaidDate: it is derived from
// (DueDate, PaidDate, today) every time it is read.
type Installment struct {
	shared.BaseEntity
	LedgerID             uuid.UUID
	Sequence             int
	Amount               int64
	AddonAmount          int64
	DueDate              *time.Time
	PaidDate             *time.Time
	PaymentMode          string
	TransactionReference string
	Remarks              string
	// AssessedLateFee is the late fee accrued up to the payment date.
	// It is informational and never counted toward ledger totals.
	AssessedLateFee int64
}

// NewInstallment creates a new unpaid installment from an InstallmentSpec
func NewInstallment(ledgerID uuid.UUID, spec InstallmentSpec) (*Installment, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	inst := &Installment{
		BaseEntity:  shared.NewBaseEntity(),
		LedgerID:    ledgerID,
		Sequence:    spec.Sequence,
		Amount:      spec.Amount,
		AddonAmount: spec.AddonAmount,
		Remarks:     spec.Remarks,
	}
	if spec.DueDate != nil {
		d := shared.CivilDate(*spec.DueDate)
		inst.DueDate = &d
	}
	return inst, nil
}

// TotalAmount returns amount plus addon
func (i *Installment) TotalAmount() int64 {
	return i.Amount + i.AddonAmount
}

// IsPaid returns true once a payment has been recorded
func (i *Installment) IsPaid() bool {
	return i.PaidDate != nil
}

// DueAmount is the total amount while unpaid and zero once paid
func (i *Installment) DueAmount() int64 {
	if i.IsPaid() {
		return 0
	}
	return i.TotalAmount()
}

// StatusOn derives the installment status for the given day
func (i *Installment) StatusOn(today time.Time) InstallmentStatus {
	if i.IsPaid() {
		return InstallmentStatusPaid
	}
	if i.DueDate == nil {
		return InstallmentStatusPending
	}
	day := shared.CivilDate(today)
	switch {
	case i.DueDate.Before(day):
		return InstallmentStatusOverdue
	case i.DueDate.Equal(day):
		return InstallmentStatusDueToday
	default:
		return InstallmentStatusPending
	}
}

// DaysOverdueOn returns the number of calendar days past the due date, or 0
func (i *Installment) DaysOverdueOn(today time.Time) int {
	if i.DueDate == nil {
		return 0
	}
	days := shared.DaysBetween(*i.DueDate, today)
	if days < 0 {
		return 0
	}
	return days
}

// LateFeeOn returns the accrued late fee for an unpaid installment
func (i *Installment) LateFeeOn(today time.Time, perDay int64) int64 {
	if i.IsPaid() {
		return 0
	}
	return int64(i.DaysOverdueOn(today)) * perDay
}

// TotalDueNowOn returns due amount plus accrued late fee
func (i *Installment) TotalDueNowOn(today time.Time, perDay int64) int64 {
	return i.DueAmount() + i.LateFeeOn(today, perDay)
}

// DueAssessment is a point-in-time view of an installment that needs attention
type DueAssessment struct {
	InstallmentID uuid.UUID         `json:"installment_id"`
	Sequence      int               `json:"sequence"`
	Status        InstallmentStatus `json:"status"`
	DueDate       time.Time         `json:"due_date"`
	DueAmount     int64             `json:"due_amount"`
	DaysOverdue   int               `json:"days_overdue"`
	LateFee       int64             `json:"late_fee"`
	TotalDueNow   int64             `json:"total_due_now"`
}

// AssessOn classifies the installment for the given day. The second return
// value is false for paid installments, those without a due date, and those
// not yet due.
func (i *Installment) AssessOn(today time.Time, perDay int64) (DueAssessment, bool) {
	status := i.StatusOn(today)
	if i.DueDate == nil || (status != InstallmentStatusOverdue && status != InstallmentStatusDueToday) {
		return DueAssessment{}, false
	}
	a := DueAssessment{
		InstallmentID: i.ID,
		Sequence:      i.Sequence,
		Status:        status,
		DueDate:       *i.DueDate,
		DueAmount:     i.DueAmount(),
	}
	if status == InstallmentStatusOverdue {
		a.DaysOverdue = i.DaysOverdueOn(today)
		a.LateFee = i.LateFeeOn(today, perDay)
	}
	a.TotalDueNow = a.DueAmount + a.LateFee
	return a, true
}

func (i *Installment) markPaid(today time.Time, paymentMode, reference string, perDay int64) error {
	if i.IsPaid() {
		return shared.InvalidStateError(fmt.Sprintf("installment %d is already paid", i.Sequence))
	}
	i.AssessedLateFee = i.LateFeeOn(today, perDay)
	paid := shared.CivilDate(today)
	i.PaidDate = &paid
	i.PaymentMode = paymentMode
	i.TransactionReference = reference
	i.Touch(today)
	return nil
}
