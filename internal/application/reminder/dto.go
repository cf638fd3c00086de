package reminder

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/notification"
)

const dateLayout = "2006-01-02"

// NotificationResponse is the API view of a notification
type NotificationResponse struct {
	ID            uuid.UUID  `json:"id"`
	StudentID     uuid.UUID  `json:"student_id"`
	LedgerID      *uuid.UUID `json:"ledger_id,omitempty"`
	InstallmentID *uuid.UUID `json:"installment_id,omitempty"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Type          string     `json:"notification_type"`
	Channel       string     `json:"channel"`
	Status        string     `json:"status"`
	AmountDue     *int64     `json:"amount_due,omitempty"`
	LateFee       *int64     `json:"late_fee,omitempty"`
	DueDate       *string    `json:"due_date,omitempty"`
	SentDate      *time.Time `json:"sent_date,omitempty"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ToNotificationResponse converts a notification to its API view
func ToNotificationResponse(n *notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:            n.ID,
		StudentID:     n.StudentID,
		LedgerID:      n.LedgerID,
		InstallmentID: n.InstallmentID,
		Title:         n.Title,
		Message:       n.Message,
		Type:          string(n.Type),
		Channel:       string(n.Channel),
		Status:        string(n.Status),
		AmountDue:     n.AmountDue,
		LateFee:       n.LateFee,
		SentDate:      n.SentDate,
		ReadAt:        n.ReadAt,
		CreatedAt:     n.CreatedAt,
	}
	if n.DueDate != nil {
		d := n.DueDate.Format(dateLayout)
		resp.DueDate = &d
	}
	return resp
}

// NotificationListFilter narrows a student's notification listing
type NotificationListFilter struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	UnreadOnly bool   `form:"unread_only"`
	Type       string `form:"type" binding:"omitempty,oneof=FEE_REMINDER DUE_TODAY_REMINDER OVERDUE_REMINDER PAYMENT_CONFIRMATION EXAM_SCHEDULED CUSTOM"`
}

// SendNotificationInput is an ad hoc message sent to one student
type SendNotificationInput struct {
	StudentID uuid.UUID `json:"student_id" binding:"required"`
	Type      string    `json:"notification_type" binding:"required,oneof=CUSTOM EXAM_SCHEDULED"`
	Title     string    `json:"title" binding:"required,max=200"`
	Message   string    `json:"message" binding:"required,max=4000"`
	DueDate   *string   `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// SendFeeReminderInput selects the ledger a single fee reminder is about.
// An empty academic year means the student's most recent ledger.
type SendFeeReminderInput struct {
	AcademicYear string `json:"academic_year" binding:"omitempty,academic_year"`
}

// MarkAllReadResponse reports how many notifications changed state
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// UnreadCountResponse carries a student's unread notification count
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}
