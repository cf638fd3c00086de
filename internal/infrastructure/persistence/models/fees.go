package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/fees"
)

// FeeLedgerModel is the persistence model for the FeeLedger aggregate root.
// TotalFees, PaidAmount, RemainingFees and PaymentStatus are derived values
// denormalised on every save so sweeps can filter in SQL.
type FeeLedgerModel struct {
	AggregateModel
	StudentID      uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_fee_ledger_student_year,priority:1"`
	AcademicYear   string              `gorm:"type:varchar(9);not null;uniqueIndex:idx_fee_ledger_student_year,priority:2"`
	AdmissionFees  *int64              `gorm:"type:bigint"`
	UniformFees    *int64              `gorm:"type:bigint"`
	BookFees       *int64              `gorm:"type:bigint"`
	TuitionFees    *int64              `gorm:"type:bigint"`
	AdditionalFees fees.AdditionalFees `gorm:"type:jsonb;not null;default:'{}'"`
	InitialAmount  *int64              `gorm:"type:bigint"`
	PaymentMode    string              `gorm:"type:varchar(50)"`
	TotalFees      int64               `gorm:"type:bigint;not null;default:0"`
	PaidAmount     int64               `gorm:"type:bigint;not null;default:0"`
	RemainingFees  int64               `gorm:"type:bigint;not null;default:0;index"`
	PaymentStatus  string              `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Installments   []InstallmentModel  `gorm:"foreignKey:LedgerID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (FeeLedgerModel) TableName() string {
	return "fee_ledgers"
}

// ToDomain converts the persistence model to a domain FeeLedger
func (m *FeeLedgerModel) ToDomain() *fees.FeeLedger {
	l := &fees.FeeLedger{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		StudentID:         m.StudentID,
		AcademicYear:      m.AcademicYear,
		FeeBreakdown: fees.FeeBreakdown{
			AdmissionFees:  m.AdmissionFees,
			UniformFees:    m.UniformFees,
			BookFees:       m.BookFees,
			TuitionFees:    m.TuitionFees,
			AdditionalFees: m.AdditionalFees,
		},
		InitialAmount: m.InitialAmount,
		PaymentMode:   m.PaymentMode,
		Installments:  make([]fees.Installment, len(m.Installments)),
	}
	if l.AdditionalFees == nil {
		l.AdditionalFees = fees.AdditionalFees{}
	}
	for i := range m.Installments {
		l.Installments[i] = *m.Installments[i].ToDomain()
	}
	return l
}

// FromDomain populates the persistence model from a domain FeeLedger
func (m *FeeLedgerModel) FromDomain(l *fees.FeeLedger) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.StudentID = l.StudentID
	m.AcademicYear = l.AcademicYear
	m.AdmissionFees = l.AdmissionFees
	m.UniformFees = l.UniformFees
	m.BookFees = l.BookFees
	m.TuitionFees = l.TuitionFees
	m.AdditionalFees = l.AdditionalFees
	m.InitialAmount = l.InitialAmount
	m.PaymentMode = l.PaymentMode
	m.TotalFees = l.TotalFees()
	m.PaidAmount = l.TotalPaidAmount()
	m.RemainingFees = l.RemainingFees()
	m.PaymentStatus = string(l.PaymentStatus())
	m.Installments = make([]InstallmentModel, len(l.Installments))
	for i := range l.Installments {
		m.Installments[i].FromDomain(&l.Installments[i], i)
	}
}

// FeeLedgerModelFromDomain creates a new persistence model from a domain FeeLedger
func FeeLedgerModelFromDomain(l *fees.FeeLedger) *FeeLedgerModel {
	m := &FeeLedgerModel{}
	m.FromDomain(l)
	return m
}

// InstallmentModel is the persistence model for an Installment.
// Position preserves schedule order independently of the caller's sequence.
type InstallmentModel struct {
	BaseModel
	LedgerID             uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_installment_ledger_seq,priority:1"`
	Sequence             int        `gorm:"not null;uniqueIndex:idx_installment_ledger_seq,priority:2"`
	Position             int        `gorm:"not null;default:0"`
	Amount               int64      `gorm:"type:bigint;not null"`
	AddonAmount          int64      `gorm:"type:bigint;not null;default:0"`
	DueDate              *time.Time `gorm:"type:date;index"`
	PaidDate             *time.Time `gorm:"type:date"`
	PaymentMode          string     `gorm:"type:varchar(50)"`
	TransactionReference string     `gorm:"type:varchar(100)"`
	Remarks              string     `gorm:"type:text"`
	AssessedLateFee      int64      `gorm:"type:bigint;not null;default:0"`
}

// TableName returns the table name for GORM
func (InstallmentModel) TableName() string {
	return "installments"
}

// ToDomain converts the persistence model to a domain Installment
func (m *InstallmentModel) ToDomain() *fees.Installment {
	inst := &fees.Installment{
		BaseEntity:           m.BaseModel.ToDomain(),
		LedgerID:             m.LedgerID,
		Sequence:             m.Sequence,
		Amount:               m.Amount,
		AddonAmount:          m.AddonAmount,
		PaymentMode:          m.PaymentMode,
		TransactionReference: m.TransactionReference,
		Remarks:              m.Remarks,
		AssessedLateFee:      m.AssessedLateFee,
	}
	inst.DueDate = civil(m.DueDate)
	inst.PaidDate = civil(m.PaidDate)
	return inst
}

// FromDomain populates the persistence model from a domain Installment
func (m *InstallmentModel) FromDomain(inst *fees.Installment, position int) {
	m.FromDomainBaseEntity(inst.BaseEntity)
	m.LedgerID = inst.LedgerID
	m.Sequence = inst.Sequence
	m.Position = position
	m.Amount = inst.Amount
	m.AddonAmount = inst.AddonAmount
	m.DueDate = inst.DueDate
	m.PaidDate = inst.PaidDate
	m.PaymentMode = inst.PaymentMode
	m.TransactionReference = inst.TransactionReference
	m.Remarks = inst.Remarks
	m.AssessedLateFee = inst.AssessedLateFee
}

// civil re-anchors a stored date to UTC midnight; drivers may return it in
// the session's zone.
func civil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
