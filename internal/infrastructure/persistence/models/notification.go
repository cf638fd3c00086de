package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/notification"
)

// NotificationModel is the persistence model for a Notification
type NotificationModel struct {
	BaseModel
	StudentID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_notification_student_installment_created,priority:1"`
	LedgerID      *uuid.UUID `gorm:"type:uuid;index"`
	InstallmentID *uuid.UUID `gorm:"type:uuid;index:idx_notification_student_installment_created,priority:2"`
	Title         string     `gorm:"type:varchar(200);not null"`
	Message       string     `gorm:"type:text"`
	Type          string     `gorm:"type:varchar(30);not null;index"`
	Channel       string     `gorm:"type:varchar(20);not null;default:'IN_APP'"`
	Status        string     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AmountDue     *int64     `gorm:"type:bigint"`
	LateFee       *int64     `gorm:"type:bigint"`
	DueDate       *time.Time `gorm:"type:date"`
	SentDate      *time.Time
	ReadAt        *time.Time
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification
func (m *NotificationModel) ToDomain() *notification.Notification {
	return &notification.Notification{
		BaseEntity:    m.BaseModel.ToDomain(),
		StudentID:     m.StudentID,
		LedgerID:      m.LedgerID,
		InstallmentID: m.InstallmentID,
		Title:         m.Title,
		Message:       m.Message,
		Type:          notification.Type(m.Type),
		Channel:       notification.Channel(m.Channel),
		Status:        notification.Status(m.Status),
		AmountDue:     m.AmountDue,
		LateFee:       m.LateFee,
		DueDate:       civil(m.DueDate),
		SentDate:      m.SentDate,
		ReadAt:        m.ReadAt,
	}
}

// FromDomain populates the persistence model from a domain Notification
func (m *NotificationModel) FromDomain(n *notification.Notification) {
	m.FromDomainBaseEntity(n.BaseEntity)
	m.StudentID = n.StudentID
	m.LedgerID = n.LedgerID
	m.InstallmentID = n.InstallmentID
	m.Title = n.Title
	m.Message = n.Message
	m.Type = string(n.Type)
	m.Channel = string(n.Channel)
	m.Status = string(n.Status)
	m.AmountDue = n.AmountDue
	m.LateFee = n.LateFee
	m.DueDate = n.DueDate
	m.SentDate = utc(n.SentDate)
	m.ReadAt = utc(n.ReadAt)
}

// NotificationModelFromDomain creates a new persistence model from a domain Notification
func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	m := &NotificationModel{}
	m.FromDomain(n)
	return m
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
