package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// Filter narrows notification listings
type Filter struct {
	shared.Filter
	UnreadOnly bool
	Type       Type
}

// Repository defines the persistence contract for notifications
type Repository interface {
	// Save creates or updates a notification
	Save(ctx context.Context, n *Notification) error

	// FindByID finds a notification by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)

	// FindByStudent lists a student's notifications, newest first
	FindByStudent(ctx context.Context, studentID uuid.UUID, filter Filter) ([]Notification, int64, error)

	// CountForInstallmentBetween counts notifications referencing the
	// (student, installment) pair created in [from, to)
	CountForInstallmentBetween(ctx context.Context, studentID, installmentID uuid.UUID, from, to time.Time) (int64, error)

	// CountUnread counts notifications not yet read by the student
	CountUnread(ctx context.Context, studentID uuid.UUID) (int64, error)

	// MarkAllRead sets every unread notification of a student to READ
	// and returns the number of rows changed
	MarkAllRead(ctx context.Context, studentID uuid.UUID, at time.Time) (int64, error)
}
