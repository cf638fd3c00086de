package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/domain/student"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
)

// GormStudentRepository implements student.Repository using GORM
type GormStudentRepository struct {
	db *gorm.DB
}

// NewGormStudentRepository creates a new GormStudentRepository
func NewGormStudentRepository(db *gorm.DB) *GormStudentRepository {
	return &GormStudentRepository{db: db}
}

// FindByID finds a student by ID
func (r *GormStudentRepository) FindByID(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	var model models.StudentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByAdmissionNumber finds a student by admission number
func (r *GormStudentRepository) FindByAdmissionNumber(ctx context.Context, admissionNumber string) (*student.Student, error) {
	var model models.StudentModel
	if err := r.db.WithContext(ctx).Where("admission_number = ?", admissionNumber).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists students with pagination; Filters["search"] matches name or admission number
func (r *GormStudentRepository) FindAll(ctx context.Context, filter shared.Filter) ([]student.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StudentModel{})
	if search, ok := filter.Filters["search"].(string); ok && search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR admission_number LIKE ?", like, like)
	}
	if active, ok := filter.Filters["active"].(bool); ok {
		query = query.Where("active = ?", active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.StudentModel
	if err := query.
		Order(studentSortColumns.orderBy(filter)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	out := make([]student.Student, len(list))
	for i := range list {
		out[i] = *list[i].ToDomain()
	}
	return out, total, nil
}

// Save creates or updates a student
func (r *GormStudentRepository) Save(ctx context.Context, s *student.Student) error {
	model := &models.StudentModel{}
	model.FromDomain(s)
	return translateError(r.db.WithContext(ctx).Save(model).Error)
}

// Ensure interface compliance
var _ student.Repository = (*GormStudentRepository)(nil)
