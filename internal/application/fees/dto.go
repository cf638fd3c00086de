package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// DateLayout is the wire format of every calendar date
const DateLayout = "2006-01-02"

// ==================== Requests ====================

// InstallmentInput describes one scheduled installment
type InstallmentInput struct {
	InstallmentID int     `json:"installment_id" binding:"required,min=1"`
	Amount        int64   `json:"amount" binding:"min=0"`
	AddonAmount   int64   `json:"addon_amount" binding:"min=0"`
	DueDate       *string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Remarks       string  `json:"remarks" binding:"max=500"`
}

// CreateLedgerInput is the request to open a ledger for a student and year
type CreateLedgerInput struct {
	StudentID      uuid.UUID          `json:"student_id" binding:"required"`
	AcademicYear   string             `json:"academic_year" binding:"required,academic_year"`
	AdmissionFees  *int64             `json:"admission_fees" binding:"omitempty,min=0"`
	UniformFees    *int64             `json:"uniform_fees" binding:"omitempty,min=0"`
	BookFees       *int64             `json:"book_fees" binding:"omitempty,min=0"`
	TuitionFees    *int64             `json:"tuition_fees" binding:"omitempty,min=0"`
	AdditionalFees map[string]int64   `json:"additional_fees"`
	InitialAmount  *int64             `json:"initial_amount" binding:"omitempty,min=0"`
	PaymentMode    string             `json:"payment_mode" binding:"max=50"`
	Installments   []InstallmentInput `json:"installments" binding:"dive"`
}

// UpdateLedgerInput merges non-null fields into a ledger. A present
// installments list, even an empty one, replaces the whole schedule.
type UpdateLedgerInput struct {
	AcademicYear   *string             `json:"academic_year" binding:"omitempty,academic_year"`
	AdmissionFees  *int64              `json:"admission_fees" binding:"omitempty,min=0"`
	UniformFees    *int64              `json:"uniform_fees" binding:"omitempty,min=0"`
	BookFees       *int64              `json:"book_fees" binding:"omitempty,min=0"`
	TuitionFees    *int64              `json:"tuition_fees" binding:"omitempty,min=0"`
	AdditionalFees map[string]int64    `json:"additional_fees"`
	InitialAmount  *int64              `json:"initial_amount" binding:"omitempty,min=0"`
	PaymentMode    *string             `json:"payment_mode" binding:"omitempty,max=50"`
	Installments   *[]InstallmentInput `json:"installments" binding:"omitempty,dive"`
}

// RecordPaymentInput records payment of one installment
type RecordPaymentInput struct {
	InstallmentID        int    `json:"installment_id" binding:"required,min=1"`
	PaymentMode          string `json:"payment_mode" binding:"required,max=50"`
	TransactionReference string `json:"transaction_reference" binding:"max=100"`
}

// LedgerListFilter narrows ledger listings
type LedgerListFilter struct {
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	StudentID     *uuid.UUID `form:"student_id"`
	AcademicYear  string     `form:"academic_year" binding:"omitempty,academic_year"`
	PaymentStatus string     `form:"payment_status" binding:"omitempty,oneof=PENDING 'PARTIALLY PAID' 'FULLY PAID'"`
}

// ==================== Responses ====================

// InstallmentResponse is an installment as seen on a given day
type InstallmentResponse struct {
	ID                   uuid.UUID `json:"id"`
	InstallmentID        int       `json:"installment_id"`
	Amount               int64     `json:"amount"`
	AddonAmount          int64     `json:"addon_amount"`
	TotalAmount          int64     `json:"total_amount"`
	DueAmount            int64     `json:"due_amount"`
	DueDate              *string   `json:"due_date,omitempty"`
	PaidDate             *string   `json:"paid_date,omitempty"`
	Status               string    `json:"status"`
	LateFee              int64     `json:"late_fee"`
	TotalDueNow          int64     `json:"total_due_now"`
	PaymentMode          string    `json:"payment_mode,omitempty"`
	TransactionReference string    `json:"transaction_reference,omitempty"`
	Remarks              string    `json:"remarks,omitempty"`
}

// LedgerResponse is a ledger with its schedule
type LedgerResponse struct {
	ID             uuid.UUID             `json:"id"`
	StudentID      uuid.UUID             `json:"student_id"`
	AcademicYear   string                `json:"academic_year"`
	AdmissionFees  *int64                `json:"admission_fees"`
	UniformFees    *int64                `json:"uniform_fees"`
	BookFees       *int64                `json:"book_fees"`
	TuitionFees    *int64                `json:"tuition_fees"`
	AdditionalFees map[string]int64      `json:"additional_fees"`
	InitialAmount  *int64                `json:"initial_amount"`
	PaymentMode    string                `json:"payment_mode,omitempty"`
	TotalFees      int64                 `json:"total_fees"`
	TotalPaid      int64                 `json:"total_paid"`
	RemainingFees  int64                 `json:"remaining_fees"`
	PaymentStatus  string                `json:"payment_status"`
	PaidPercentage decimal.Decimal       `json:"paid_percentage"`
	Installments   []InstallmentResponse `json:"installments"`
	Version        int                   `json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// LedgerListItemResponse is the summary row of a ledger listing
type LedgerListItemResponse struct {
	ID               uuid.UUID `json:"id"`
	StudentID        uuid.UUID `json:"student_id"`
	AcademicYear     string    `json:"academic_year"`
	TotalFees        int64     `json:"total_fees"`
	TotalPaid        int64     `json:"total_paid"`
	RemainingFees    int64     `json:"remaining_fees"`
	PaymentStatus    string    `json:"payment_status"`
	InstallmentCount int       `json:"installment_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PaymentResponse is the outcome of a recorded payment
type PaymentResponse struct {
	Ledger      LedgerResponse      `json:"ledger"`
	Installment InstallmentResponse `json:"installment"`
}

// DueInstallmentResponse is a due-today or overdue installment
type DueInstallmentResponse struct {
	LedgerID     uuid.UUID `json:"ledger_id"`
	AcademicYear string    `json:"academic_year"`
	fees.DueAssessment
}

// StudentDuesResponse lists everything a student owes today
type StudentDuesResponse struct {
	StudentID   uuid.UUID                `json:"student_id"`
	AsOf        string                   `json:"as_of"`
	Items       []DueInstallmentResponse `json:"items"`
	TotalDueNow int64                    `json:"total_due_now"`
}

// ==================== Conversions ====================

// ToInstallmentResponse renders an installment for the given day
func ToInstallmentResponse(inst *fees.Installment, today time.Time, lateFeePerDay int64) InstallmentResponse {
	resp := InstallmentResponse{
		ID:                   inst.ID,
		InstallmentID:        inst.Sequence,
		Amount:               inst.Amount,
		AddonAmount:          inst.AddonAmount,
		TotalAmount:          inst.TotalAmount(),
		DueAmount:            inst.DueAmount(),
		DueDate:              formatDate(inst.DueDate),
		PaidDate:             formatDate(inst.PaidDate),
		Status:               inst.StatusOn(today).String(),
		LateFee:              inst.LateFeeOn(today, lateFeePerDay),
		PaymentMode:          inst.PaymentMode,
		TransactionReference: inst.TransactionReference,
		Remarks:              inst.Remarks,
	}
	if inst.IsPaid() {
		resp.LateFee = inst.AssessedLateFee
	}
	resp.TotalDueNow = inst.TotalDueNowOn(today, lateFeePerDay)
	return resp
}

// ToLedgerResponse renders a ledger and its schedule for the given day
func ToLedgerResponse(l *fees.FeeLedger, today time.Time, lateFeePerDay int64) LedgerResponse {
	installments := make([]InstallmentResponse, len(l.Installments))
	for i := range l.Installments {
		installments[i] = ToInstallmentResponse(&l.Installments[i], today, lateFeePerDay)
	}
	additional := make(map[string]int64, len(l.AdditionalFees))
	for k, v := range l.AdditionalFees {
		additional[k] = v
	}
	return LedgerResponse{
		ID:             l.ID,
		StudentID:      l.StudentID,
		AcademicYear:   l.AcademicYear,
		AdmissionFees:  l.AdmissionFees,
		UniformFees:    l.UniformFees,
		BookFees:       l.BookFees,
		TuitionFees:    l.TuitionFees,
		AdditionalFees: additional,
		InitialAmount:  l.InitialAmount,
		PaymentMode:    l.PaymentMode,
		TotalFees:      l.TotalFees(),
		TotalPaid:      l.TotalPaidAmount(),
		RemainingFees:  l.RemainingFees(),
		PaymentStatus:  l.PaymentStatus().String(),
		PaidPercentage: l.PaidPercentage(),
		Installments:   installments,
		Version:        l.Version,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

// ToLedgerListItemResponse renders the summary row of a ledger
func ToLedgerListItemResponse(l *fees.FeeLedger) LedgerListItemResponse {
	return LedgerListItemResponse{
		ID:               l.ID,
		StudentID:        l.StudentID,
		AcademicYear:     l.AcademicYear,
		TotalFees:        l.TotalFees(),
		TotalPaid:        l.TotalPaidAmount(),
		RemainingFees:    l.RemainingFees(),
		PaymentStatus:    l.PaymentStatus().String(),
		InstallmentCount: len(l.Installments),
		UpdatedAt:        l.UpdatedAt,
	}
}

func (in InstallmentInput) toSpec() (fees.InstallmentSpec, error) {
	spec := fees.InstallmentSpec{
		Sequence:    in.InstallmentID,
		Amount:      in.Amount,
		AddonAmount: in.AddonAmount,
		Remarks:     in.Remarks,
	}
	if in.DueDate != nil && *in.DueDate != "" {
		d, err := time.Parse(DateLayout, *in.DueDate)
		if err != nil {
			return spec, shared.ValidationError("due date must be YYYY-MM-DD: " + *in.DueDate)
		}
		spec.DueDate = &d
	}
	return spec, nil
}

func toSpecs(inputs []InstallmentInput) ([]fees.InstallmentSpec, error) {
	specs := make([]fees.InstallmentSpec, 0, len(inputs))
	for _, in := range inputs {
		spec, err := in.toSpec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (in CreateLedgerInput) breakdown() fees.FeeBreakdown {
	return fees.FeeBreakdown{
		AdmissionFees:  in.AdmissionFees,
		UniformFees:    in.UniformFees,
		BookFees:       in.BookFees,
		TuitionFees:    in.TuitionFees,
		AdditionalFees: fees.AdditionalFees(in.AdditionalFees),
	}
}

func (in UpdateLedgerInput) patch() (fees.LedgerPatch, error) {
	p := fees.LedgerPatch{
		AcademicYear:  in.AcademicYear,
		AdmissionFees: in.AdmissionFees,
		UniformFees:   in.UniformFees,
		BookFees:      in.BookFees,
		TuitionFees:   in.TuitionFees,
		InitialAmount: in.InitialAmount,
		PaymentMode:   in.PaymentMode,
	}
	if in.AdditionalFees != nil {
		p.AdditionalFees = fees.AdditionalFees(in.AdditionalFees)
	}
	if in.Installments != nil {
		specs, err := toSpecs(*in.Installments)
		if err != nil {
			return p, err
		}
		p.Installments = specs
		p.ReplaceInstallments = true
	}
	return p, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
