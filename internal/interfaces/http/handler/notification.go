package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/application/reminder"
)

// NotificationService exposes the dispatcher's notification queries and
// acknowledgements
type NotificationService interface {
	SendCustom(ctx context.Context, in reminder.SendNotificationInput) (*reminder.NotificationResponse, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) (*reminder.NotificationResponse, error)
	MarkAllAsRead(ctx context.Context, studentID uuid.UUID) (int64, error)
	ListNotifications(ctx context.Context, studentID uuid.UUID, filter reminder.NotificationListFilter) ([]reminder.NotificationResponse, int64, error)
	UnreadCount(ctx context.Context, studentID uuid.UUID) (int64, error)
}

// NotificationHandler handles notification endpoints
type NotificationHandler struct {
	BaseHandler
	notifications NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListByStudent returns a page of a student's notifications, newest first
// GET /students/:id/notifications
func (h *NotificationHandler) ListByStudent(c *gin.Context) {
	studentID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var filter reminder.NotificationListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	items, total, err := h.notifications.ListNotifications(c.Request.Context(), studentID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// UnreadCount returns the number of unread notifications
// GET /students/:id/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	studentID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notifications.UnreadCount(c.Request.Context(), studentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reminder.UnreadCountResponse{Unread: n})
}

// MarkAsRead acknowledges one notification
// POST /notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notifications.MarkAsRead(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, n)
}

// MarkAllAsRead acknowledges every unread notification of a student
// POST /students/:id/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	studentID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllAsRead(c.Request.Context(), studentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reminder.MarkAllReadResponse{Updated: updated})
}

// Send delivers an ad hoc message to one student
// POST /notifications
func (h *NotificationHandler) Send(c *gin.Context) {
	var req reminder.SendNotificationInput
	if !h.bindJSON(c, &req) {
		return
	}

	n, err := h.notifications.SendCustom(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, n)
}
