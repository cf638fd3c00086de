package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// Type classifies what a notification is about
type Type string

const (
	TypeFeeReminder         Type = "FEE_REMINDER"
	TypeDueTodayReminder    Type = "DUE_TODAY_REMINDER"
	TypeOverdueReminder     Type = "OVERDUE_REMINDER"
	TypePaymentConfirmation Type = "PAYMENT_CONFIRMATION"
	TypeExamScheduled       Type = "EXAM_SCHEDULED"
	TypeCustom              Type = "CUSTOM"
)

// IsValid checks if the type is a known notification type
func (t Type) IsValid() bool {
	switch t {
	case TypeFeeReminder, TypeDueTodayReminder, TypeOverdueReminder,
		TypePaymentConfirmation, TypeExamScheduled, TypeCustom:
		return true
	}
	return false
}

// IsReminder returns true for the scanner-driven reminder types
func (t Type) IsReminder() bool {
	return t == TypeFeeReminder || t == TypeDueTodayReminder || t == TypeOverdueReminder
}

// Channel is where a notification is surfaced
type Channel string

const (
	ChannelInApp Channel = "IN_APP"
	ChannelEmail Channel = "EMAIL"
)

// Status is the lifecycle state of a notification
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusRead    Status = "READ"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusSent || s == StatusRead
}

// Notification is an in-app record created at send time.
// Transitions: PENDING -> SENT on dispatch, SENT -> READ on acknowledgment.
type Notification struct {
	shared.BaseEntity
	StudentID     uuid.UUID
	LedgerID      *uuid.UUID
	InstallmentID *uuid.UUID
	Title         string
	Message       string
	Type          Type
	Channel       Channel
	Status        Status
	AmountDue     *int64
	LateFee       *int64
	DueDate       *time.Time
	SentDate      *time.Time
	ReadAt        *time.Time
}

// Params holds the content of a new notification
type Params struct {
	StudentID     uuid.UUID
	LedgerID      *uuid.UUID
	InstallmentID *uuid.UUID
	Type          Type
	Channel       Channel
	Title         string
	Message       string
	AmountDue     *int64
	LateFee       *int64
	DueDate       *time.Time
}

// New creates a PENDING notification
func New(p Params, now time.Time) (*Notification, error) {
	if p.StudentID == uuid.Nil {
		return nil, shared.ValidationError("student id is required")
	}
	if !p.Type.IsValid() {
		return nil, shared.ValidationError("invalid notification type: " + string(p.Type))
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, shared.ValidationError("notification title is required")
	}
	if p.Channel == "" {
		p.Channel = ChannelInApp
	}
	return &Notification{
		BaseEntity:    shared.BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		StudentID:     p.StudentID,
		LedgerID:      p.LedgerID,
		InstallmentID: p.InstallmentID,
		Title:         p.Title,
		Message:       p.Message,
		Type:          p.Type,
		Channel:       p.Channel,
		Status:        StatusPending,
		AmountDue:     p.AmountDue,
		LateFee:       p.LateFee,
		DueDate:       p.DueDate,
	}, nil
}

// MarkSent moves a pending notification to SENT
func (n *Notification) MarkSent(now time.Time) error {
	if n.Status != StatusPending {
		return shared.InvalidStateError("only pending notifications can be sent")
	}
	n.Status = StatusSent
	n.SentDate = &now
	n.Touch(now)
	return nil
}

// MarkRead acknowledges the notification. Returns false if it was already read.
func (n *Notification) MarkRead(now time.Time) bool {
	if n.Status == StatusRead {
		return false
	}
	n.Status = StatusRead
	n.ReadAt = &now
	n.Touch(now)
	return true
}

// IsRead returns true once acknowledged
func (n *Notification) IsRead() bool {
	return n.Status == StatusRead
}
