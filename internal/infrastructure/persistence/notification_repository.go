package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolfees/backend/internal/domain/notification"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
)

// GormNotificationRepository implements notification.Repository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save creates or updates a notification
func (r *GormNotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	model := models.NotificationModelFromDomain(n)
	return translateError(r.db.WithContext(ctx).Save(model).Error)
}

// FindByID finds a notification by ID
func (r *GormNotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	var model models.NotificationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByStudent lists a student's notifications, newest first by default
func (r *GormNotificationRepository) FindByStudent(ctx context.Context, studentID uuid.UUID, filter notification.Filter) ([]notification.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.NotificationModel{}).Where("student_id = ?", studentID)
	if filter.UnreadOnly {
		query = query.Where("status <> ?", string(notification.StatusRead))
	}
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.NotificationModel
	if err := query.
		Order(notificationSortColumns.orderBy(filter.Filter)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}

	out := make([]notification.Notification, len(list))
	for i := range list {
		out[i] = *list[i].ToDomain()
	}
	return out, total, nil
}

// CountForInstallmentBetween counts notifications for the (student, installment)
// pair created in [from, to)
func (r *GormNotificationRepository) CountForInstallmentBetween(ctx context.Context, studentID, installmentID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("student_id = ? AND installment_id = ?", studentID, installmentID).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountUnread counts notifications the student has not read
func (r *GormNotificationRepository) CountUnread(ctx context.Context, studentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("student_id = ? AND status <> ?", studentID, string(notification.StatusRead)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkAllRead marks every unread notification of the student as read
func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, studentID uuid.UUID, at time.Time) (int64, error) {
	at = at.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("student_id = ? AND status <> ?", studentID, string(notification.StatusRead)).
		Updates(map[string]interface{}{
			"status":     string(notification.StatusRead),
			"read_at":    at,
			"updated_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure interface compliance
var _ notification.Repository = (*GormNotificationRepository)(nil)
