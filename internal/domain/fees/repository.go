package fees

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// LedgerFilter narrows ledger listings
type LedgerFilter struct {
	shared.Filter
	StudentID     *uuid.UUID
	AcademicYear  string
	PaymentStatus PaymentStatus
}

// LedgerRef identifies a ledger together with its owner
type LedgerRef struct {
	LedgerID     uuid.UUID
	StudentID    uuid.UUID
	AcademicYear string
}

// FeeLedgerRepository defines the persistence contract for fee ledgers
type FeeLedgerRepository interface {
	// FindByID loads a ledger with its installments
	FindByID(ctx context.Context, id uuid.UUID) (*FeeLedger, error)

	// FindByStudentAndYear loads the ledger of a student for an academic year
	FindByStudentAndYear(ctx context.Context, studentID uuid.UUID, academicYear string) (*FeeLedger, error)

	// FindLatestByStudent loads the ledger with the most recent academic year
	FindLatestByStudent(ctx context.Context, studentID uuid.UUID) (*FeeLedger, error)

	// FindByStudent loads every ledger of a student, newest year first
	FindByStudent(ctx context.Context, studentID uuid.UUID) ([]FeeLedger, error)

	// FindAll lists ledgers with filtering and pagination
	FindAll(ctx context.Context, filter LedgerFilter) ([]FeeLedger, int64, error)

	// ExistsForStudentAndYear checks the one-ledger-per-year rule
	ExistsForStudentAndYear(ctx context.Context, studentID uuid.UUID, academicYear string) (bool, error)

	// FindRefsWithUnpaidDueBy lists ledgers that have an unpaid installment
	// due on or before the given date
	FindRefsWithUnpaidDueBy(ctx context.Context, date time.Time) ([]LedgerRef, error)

	// FindRefsWithOutstanding lists ledgers whose remaining fees are above zero
	FindRefsWithOutstanding(ctx context.Context) ([]LedgerRef, error)

	// Save creates or updates a ledger and replaces its installments
	Save(ctx context.Context, ledger *FeeLedger) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, ledger *FeeLedger) error

	// Delete removes a ledger and its installments
	Delete(ctx context.Context, id uuid.UUID) error
}
