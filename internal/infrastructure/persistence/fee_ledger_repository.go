package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
)

// GormFeeLedgerRepository implements fees.FeeLedgerRepository using GORM
type GormFeeLedgerRepository struct {
	db *gorm.DB
}

// NewGormFeeLedgerRepository creates a new GormFeeLedgerRepository
func NewGormFeeLedgerRepository(db *gorm.DB) *GormFeeLedgerRepository {
	return &GormFeeLedgerRepository{db: db}
}

// withInstallments preloads installments in schedule order
func withInstallments(db *gorm.DB) *gorm.DB {
	return db.Preload("Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// FindByID finds a ledger by its ID
func (r *GormFeeLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*fees.FeeLedger, error) {
	var model models.FeeLedgerModel
	if err := withInstallments(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByStudentAndYear finds the ledger of a student for an academic year
func (r *GormFeeLedgerRepository) FindByStudentAndYear(ctx context.Context, studentID uuid.UUID, academicYear string) (*fees.FeeLedger, error) {
	var model models.FeeLedgerModel
	if err := withInstallments(r.db.WithContext(ctx)).
		Where("student_id = ? AND academic_year = ?", studentID, academicYear).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindLatestByStudent finds the ledger with the most recent academic year
func (r *GormFeeLedgerRepository) FindLatestByStudent(ctx context.Context, studentID uuid.UUID) (*fees.FeeLedger, error) {
	var model models.FeeLedgerModel
	if err := withInstallments(r.db.WithContext(ctx)).
		Where("student_id = ?", studentID).
		Order("academic_year DESC").
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByStudent finds every ledger of a student, newest year first
func (r *GormFeeLedgerRepository) FindByStudent(ctx context.Context, studentID uuid.UUID) ([]fees.FeeLedger, error) {
	var list []models.FeeLedgerModel
	if err := withInstallments(r.db.WithContext(ctx)).
		Where("student_id = ?", studentID).
		Order("academic_year DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return toDomainLedgers(list), nil
}

// FindAll lists ledgers with filtering and pagination
func (r *GormFeeLedgerRepository) FindAll(ctx context.Context, filter fees.LedgerFilter) ([]fees.FeeLedger, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FeeLedgerModel{})
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.AcademicYear != "" {
		query = query.Where("academic_year = ?", filter.AcademicYear)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", string(filter.PaymentStatus))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.FeeLedgerModel
	if err := withInstallments(query).
		Order(ledgerSortColumns.orderBy(filter.Filter)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return toDomainLedgers(list), total, nil
}

// ExistsForStudentAndYear checks whether the student already has a ledger for the year
func (r *GormFeeLedgerRepository) ExistsForStudentAndYear(ctx context.Context, studentID uuid.UUID, academicYear string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FeeLedgerModel{}).
		Where("student_id = ? AND academic_year = ?", studentID, academicYear).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type ledgerRefRow struct {
	LedgerID     uuid.UUID
	StudentID    uuid.UUID
	AcademicYear string
}

// FindRefsWithUnpaidDueBy lists ledgers holding an unpaid installment due on or before date.
// The bound is passed as the next day's ISO date so the comparison behaves
// the same against PostgreSQL date columns and SQLite's text encoding.
func (r *GormFeeLedgerRepository) FindRefsWithUnpaidDueBy(ctx context.Context, date time.Time) ([]fees.LedgerRef, error) {
	before := shared.CivilDate(date).AddDate(0, 0, 1).Format("2006-01-02")
	var rows []ledgerRefRow
	if err := r.db.WithContext(ctx).
		Model(&models.FeeLedgerModel{}).
		Select("DISTINCT fee_ledgers.id AS ledger_id, fee_ledgers.student_id, fee_ledgers.academic_year").
		Joins("JOIN installments ON installments.ledger_id = fee_ledgers.id").
		Where("installments.paid_date IS NULL AND installments.due_date IS NOT NULL AND installments.due_date < ?", before).
		Order("ledger_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerRefs(rows), nil
}

// FindRefsWithOutstanding lists ledgers with remaining fees above zero
func (r *GormFeeLedgerRepository) FindRefsWithOutstanding(ctx context.Context) ([]fees.LedgerRef, error) {
	var rows []ledgerRefRow
	if err := r.db.WithContext(ctx).
		Model(&models.FeeLedgerModel{}).
		Select("id AS ledger_id, student_id, academic_year").
		Where("remaining_fees > 0").
		Order("id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerRefs(rows), nil
}

// Save creates or updates a ledger and replaces its installments
func (r *GormFeeLedgerRepository) Save(ctx context.Context, ledger *fees.FeeLedger) error {
	model := models.FeeLedgerModelFromDomain(ledger)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		return saveInstallments(tx, model)
	})
	return translateError(err)
}

// SaveWithLock saves with optimistic locking. The aggregate carries the
// already incremented version; the stored row must still hold the previous one.
func (r *GormFeeLedgerRepository) SaveWithLock(ctx context.Context, ledger *fees.FeeLedger) error {
	model := models.FeeLedgerModelFromDomain(ledger)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.FeeLedgerModel{}).
			Where("id = ? AND version = ?", model.ID, model.Version-1).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.FeeLedgerModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrentModification
		}
		return saveInstallments(tx, model)
	})
	return translateError(err)
}

// saveInstallments deletes installments no longer in the schedule and upserts the rest
func saveInstallments(tx *gorm.DB, model *models.FeeLedgerModel) error {
	ids := make([]uuid.UUID, len(model.Installments))
	for i := range model.Installments {
		ids[i] = model.Installments[i].ID
	}

	del := tx.Where("ledger_id = ?", model.ID)
	if len(ids) > 0 {
		del = del.Where("id NOT IN ?", ids)
	}
	if err := del.Delete(&models.InstallmentModel{}).Error; err != nil {
		return err
	}

	for i := range model.Installments {
		model.Installments[i].LedgerID = model.ID
		if err := tx.Save(&model.Installments[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a ledger and its installments
func (r *GormFeeLedgerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ledger_id = ?", id).Delete(&models.InstallmentModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.FeeLedgerModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func toDomainLedgers(list []models.FeeLedgerModel) []fees.FeeLedger {
	out := make([]fees.FeeLedger, len(list))
	for i := range list {
		out[i] = *list[i].ToDomain()
	}
	return out
}

func toLedgerRefs(rows []ledgerRefRow) []fees.LedgerRef {
	refs := make([]fees.LedgerRef, len(rows))
	for i, row := range rows {
		refs[i] = fees.LedgerRef{LedgerID: row.LedgerID, StudentID: row.StudentID, AcademicYear: row.AcademicYear}
	}
	return refs
}

// Ensure interface compliance
var _ fees.FeeLedgerRepository = (*GormFeeLedgerRepository)(nil)
