package fees

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// PaymentStatus is the derived payment state of a ledger
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY PAID"
	PaymentStatusFullyPaid     PaymentStatus = "FULLY PAID"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartiallyPaid, PaymentStatusFullyPaid:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// AdditionalFees maps a free-form label to an amount. Stored as JSON.
type AdditionalFees map[string]int64

// Total sums every additional fee
func (a AdditionalFees) Total() int64 {
	var sum int64
	for _, v := range a {
		sum += v
	}
	return sum
}

// Labels returns the labels in sorted order
func (a AdditionalFees) Labels() []string {
	labels := make([]string, 0, len(a))
	for k := range a {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return labels
}

// Value implements driver.Valuer interface for GORM to store as JSON
func (a AdditionalFees) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSON
func (a *AdditionalFees) Scan(value interface{}) error {
	if value == nil {
		*a = AdditionalFees{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan AdditionalFees: unsupported type")
	}

	if len(bytes) == 0 {
		*a = AdditionalFees{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// FeeBreakdown holds the fee heads of a ledger. A nil head is "not applicable".
type FeeBreakdown struct {
	AdmissionFees  *int64
	UniformFees    *int64
	BookFees       *int64
	TuitionFees    *int64
	AdditionalFees AdditionalFees
}

// Total returns the sum of all heads, treating nil as zero
func (b FeeBreakdown) Total() int64 {
	return valueOr(b.AdmissionFees) + valueOr(b.UniformFees) + valueOr(b.BookFees) +
		valueOr(b.TuitionFees) + b.AdditionalFees.Total()
}

func (b FeeBreakdown) validate() error {
	heads := map[string]*int64{
		"admission fees": b.AdmissionFees,
		"uniform fees":   b.UniformFees,
		"book fees":      b.BookFees,
		"tuition fees":   b.TuitionFees,
	}
	for name, v := range heads {
		if v != nil && *v < 0 {
			return shared.ValidationError(name + " cannot be negative")
		}
	}
	for label, v := range b.AdditionalFees {
		if label == "" {
			return shared.ValidationError("additional fee label cannot be empty")
		}
		if v < 0 {
			return shared.ValidationError(fmt.Sprintf("additional fee %q cannot be negative", label))
		}
	}
	return nil
}

var academicYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// ValidateAcademicYear accepts "YYYY-YYYY" where the second year follows the first
func ValidateAcademicYear(year string) error {
	m := academicYearPattern.FindStringSubmatch(year)
	if m == nil {
		return shared.ValidationError("academic year must look like 2024-2025")
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end != start+1 {
		return shared.ValidationError("academic year must span two consecutive years")
	}
	return nil
}

// FeeLedger is the per-student, per-academic-year aggregate of fee
// obligations. Exactly one exists per (StudentID, AcademicYear).
type FeeLedger struct {
	shared.BaseAggregateRoot
	StudentID    uuid.UUID
	AcademicYear string
	FeeBreakdown
	InitialAmount *int64
	PaymentMode   string
	Installments  []Installment
}

// NewFeeLedger creates a ledger and its installment schedule. The schedule is
// stored as given: only amounts and sequence uniqueness are checked.
func NewFeeLedger(
	studentID uuid.UUID,
	academicYear string,
	breakdown FeeBreakdown,
	initialAmount *int64,
	paymentMode string,
	schedule []InstallmentSpec,
) (*FeeLedger, error) {
	if studentID == uuid.Nil {
		return nil, shared.ValidationError("student id is required")
	}
	if err := ValidateAcademicYear(academicYear); err != nil {
		return nil, err
	}
	if err := breakdown.validate(); err != nil {
		return nil, err
	}
	if initialAmount != nil && *initialAmount < 0 {
		return nil, shared.ValidationError("initial amount cannot be negative")
	}
	if breakdown.AdditionalFees == nil {
		breakdown.AdditionalFees = AdditionalFees{}
	}

	l := &FeeLedger{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StudentID:         studentID,
		AcademicYear:      academicYear,
		FeeBreakdown:      breakdown,
		InitialAmount:     initialAmount,
		PaymentMode:       paymentMode,
	}
	installments, err := l.buildSchedule(schedule, nil)
	if err != nil {
		return nil, err
	}
	l.Installments = installments

	l.Record(NewFeeLedgerCreatedEvent(l))
	return l, nil
}

// TotalFees returns the sum of every fee head
func (l *FeeLedger) TotalFees() int64 {
	return l.FeeBreakdown.Total()
}

// TotalPaidAmount returns the initial amount plus every paid installment
func (l *FeeLedger) TotalPaidAmount() int64 {
	paid := valueOr(l.InitialAmount)
	for i := range l.Installments {
		if l.Installments[i].IsPaid() {
			paid += l.Installments[i].TotalAmount()
		}
	}
	return paid
}

// RemainingFees returns total minus paid, never below zero
func (l *FeeLedger) RemainingFees() int64 {
	remaining := l.TotalFees() - l.TotalPaidAmount()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFullyPaid returns true when nothing remains to be paid
func (l *FeeLedger) IsFullyPaid() bool {
	return l.RemainingFees() <= 0
}

// PaymentStatus derives the ledger payment status
func (l *FeeLedger) PaymentStatus() PaymentStatus {
	switch {
	case l.RemainingFees() <= 0:
		return PaymentStatusFullyPaid
	case l.TotalPaidAmount() > 0:
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusPending
	}
}

// PaidPercentage returns the paid share of total fees, rounded to 2 places
func (l *FeeLedger) PaidPercentage() decimal.Decimal {
	total := l.TotalFees()
	if total == 0 {
		return decimal.NewFromInt(100)
	}
	paid := decimal.NewFromInt(l.TotalPaidAmount())
	pct := paid.Div(decimal.NewFromInt(total)).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	return pct.Round(2)
}

// FindInstallment returns the installment with the given sequence
func (l *FeeLedger) FindInstallment(sequence int) (*Installment, error) {
	for i := range l.Installments {
		if l.Installments[i].Sequence == sequence {
			return &l.Installments[i], nil
		}
	}
	return nil, shared.NotFoundError(fmt.Sprintf("installment %d not found", sequence))
}

// FindInstallmentByID returns the installment with the given entity ID
func (l *FeeLedger) FindInstallmentByID(id uuid.UUID) (*Installment, error) {
	for i := range l.Installments {
		if l.Installments[i].ID == id {
			return &l.Installments[i], nil
		}
	}
	return nil, shared.NotFoundError("installment not found")
}

// NextUnpaidInstallment returns the unpaid installment with the earliest due
// date, or nil if every installment is paid
func (l *FeeLedger) NextUnpaidInstallment() *Installment {
	var next *Installment
	for i := range l.Installments {
		inst := &l.Installments[i]
		if inst.IsPaid() || inst.DueDate == nil {
			continue
		}
		if next == nil || inst.DueDate.Before(*next.DueDate) {
			next = inst
		}
	}
	return next
}

// DueAssessments lists every due-today or overdue installment in schedule order
func (l *FeeLedger) DueAssessments(today time.Time, lateFeePerDay int64) []DueAssessment {
	var out []DueAssessment
	for i := range l.Installments {
		if a, ok := l.Installments[i].AssessOn(today, lateFeePerDay); ok {
			out = append(out, a)
		}
	}
	return out
}

// RecordPayment marks the installment with the given sequence as paid.
// Fails with NotFound for an unknown sequence and InvalidState if already paid.
func (l *FeeLedger) RecordPayment(sequence int, paymentMode, reference string, today time.Time, lateFeePerDay int64) (*Installment, error) {
	inst, err := l.FindInstallment(sequence)
	if err != nil {
		return nil, err
	}
	if err := inst.markPaid(today, paymentMode, reference, lateFeePerDay); err != nil {
		return nil, err
	}

	l.Touch(today)
	l.BumpVersion()
	l.Record(NewInstallmentPaidEvent(l, inst))
	return inst, nil
}

// LedgerPatch carries the fields of a partial update. Nil means unchanged.
type LedgerPatch struct {
	AcademicYear   *string
	AdmissionFees  *int64
	UniformFees    *int64
	BookFees       *int64
	TuitionFees    *int64
	AdditionalFees AdditionalFees
	InitialAmount  *int64
	PaymentMode    *string
	Installments   []InstallmentSpec
	// ReplaceInstallments distinguishes "no change" from "replace with an empty list"
	ReplaceInstallments bool
}

// ApplyUpdate merges the non-nil fields of patch into the ledger
func (l *FeeLedger) ApplyUpdate(patch LedgerPatch, now time.Time) error {
	next := l.FeeBreakdown
	if patch.AdmissionFees != nil {
		next.AdmissionFees = patch.AdmissionFees
	}
	if patch.UniformFees != nil {
		next.UniformFees = patch.UniformFees
	}
	if patch.BookFees != nil {
		next.BookFees = patch.BookFees
	}
	if patch.TuitionFees != nil {
		next.TuitionFees = patch.TuitionFees
	}
	if patch.AdditionalFees != nil {
		next.AdditionalFees = patch.AdditionalFees
	}
	if err := next.validate(); err != nil {
		return err
	}
	if patch.InitialAmount != nil && *patch.InitialAmount < 0 {
		return shared.ValidationError("initial amount cannot be negative")
	}
	if patch.AcademicYear != nil {
		if err := ValidateAcademicYear(*patch.AcademicYear); err != nil {
			return err
		}
	}

	var installments []Installment
	if patch.ReplaceInstallments {
		var err error
		installments, err = l.buildSchedule(patch.Installments, l.Installments)
		if err != nil {
			return err
		}
	}

	l.FeeBreakdown = next
	if patch.InitialAmount != nil {
		l.InitialAmount = patch.InitialAmount
	}
	if patch.PaymentMode != nil {
		l.PaymentMode = *patch.PaymentMode
	}
	if patch.AcademicYear != nil {
		l.AcademicYear = *patch.AcademicYear
	}
	if patch.ReplaceInstallments {
		l.Installments = installments
	}

	l.Touch(now)
	l.BumpVersion()
	return nil
}

// AppendInstallment adds one installment to the end of the schedule
func (l *FeeLedger) AppendInstallment(spec InstallmentSpec, now time.Time) (*Installment, error) {
	for i := range l.Installments {
		if l.Installments[i].Sequence == spec.Sequence {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("installment %d already exists", spec.Sequence))
		}
	}
	inst, err := NewInstallment(l.ID, spec)
	if err != nil {
		return nil, err
	}
	l.Installments = append(l.Installments, *inst)
	l.Touch(now)
	l.BumpVersion()
	return &l.Installments[len(l.Installments)-1], nil
}

// buildSchedule turns specs into installments. When replacing an existing
// schedule, entries matching an existing sequence keep their identity, and a
// paid installment must be present with unchanged amounts so PAID stays terminal.
func (l *FeeLedger) buildSchedule(specs []InstallmentSpec, existing []Installment) ([]Installment, error) {
	bySeq := make(map[int]*Installment, len(existing))
	for i := range existing {
		bySeq[existing[i].Sequence] = &existing[i]
	}

	seen := make(map[int]bool, len(specs))
	out := make([]Installment, 0, len(specs))
	for _, spec := range specs {
		if seen[spec.Sequence] {
			return nil, shared.ValidationError(fmt.Sprintf("duplicate installment id %d", spec.Sequence))
		}
		seen[spec.Sequence] = true

		inst, err := NewInstallment(l.ID, spec)
		if err != nil {
			return nil, err
		}
		if prev, ok := bySeq[spec.Sequence]; ok {
			if prev.IsPaid() {
				if prev.Amount != spec.Amount || prev.AddonAmount != spec.AddonAmount {
					return nil, shared.InvalidStateError(
						fmt.Sprintf("installment %d is paid and its amount cannot change", spec.Sequence))
				}
				kept := *prev
				kept.Remarks = spec.Remarks
				out = append(out, kept)
				continue
			}
			inst.BaseEntity = prev.BaseEntity
		}
		out = append(out, *inst)
	}

	for _, prev := range existing {
		if prev.IsPaid() && !seen[prev.Sequence] {
			return nil, shared.InvalidStateError(
				fmt.Sprintf("installment %d is paid and cannot be removed", prev.Sequence))
		}
	}
	return out, nil
}

func valueOr(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
