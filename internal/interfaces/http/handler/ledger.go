package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appfees "github.com/schoolfees/backend/internal/application/fees"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
)

// LedgerService is the subset of the ledger use cases the HTTP layer needs
type LedgerService interface {
	Create(ctx context.Context, in appfees.CreateLedgerInput) (*appfees.LedgerResponse, error)
	GetByID(ctx context.Context, ledgerID uuid.UUID) (*appfees.LedgerResponse, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]appfees.LedgerResponse, error)
	List(ctx context.Context, filter appfees.LedgerListFilter) ([]appfees.LedgerListItemResponse, int64, error)
	Update(ctx context.Context, ledgerID uuid.UUID, in appfees.UpdateLedgerInput) (*appfees.LedgerResponse, error)
	AppendInstallment(ctx context.Context, ledgerID uuid.UUID, in appfees.InstallmentInput) (*appfees.LedgerResponse, error)
	RecordPayment(ctx context.Context, ledgerID uuid.UUID, in appfees.RecordPaymentInput) (*appfees.PaymentResponse, error)
	Delete(ctx context.Context, ledgerID uuid.UUID) error
	ListDueInstallments(ctx context.Context, studentID uuid.UUID) (*appfees.StudentDuesResponse, error)
}

// LedgerHandler handles fee ledger endpoints
type LedgerHandler struct {
	BaseHandler
	ledgers LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgers LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgers: ledgers}
}

// Create opens a ledger for a student and academic year
// POST /ledgers
func (h *LedgerHandler) Create(c *gin.Context) {
	var req appfees.CreateLedgerInput
	if !h.bindJSON(c, &req) {
		return
	}

	ledger, err := h.ledgers.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ledger)
}

// GetByID returns a ledger with its schedule
// GET /ledgers/:id
func (h *LedgerHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	ledger, err := h.ledgers.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledger)
}

// List returns a page of ledger summaries
// GET /ledgers
func (h *LedgerHandler) List(c *gin.Context) {
	var filter appfees.LedgerListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	items, total, err := h.ledgers.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// ListByStudent returns every ledger a student has
// GET /students/:id/ledgers
func (h *LedgerHandler) ListByStudent(c *gin.Context) {
	studentID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	ledgers, err := h.ledgers.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledgers)
}

// Update merges the supplied fields into a ledger
// PUT /ledgers/:id
func (h *LedgerHandler) Update(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appfees.UpdateLedgerInput
	if !h.bindJSON(c, &req) {
		return
	}

	ledger, err := h.ledgers.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ledger)
}

// AppendInstallment adds one installment to the schedule
// POST /ledgers/:id/installments
func (h *LedgerHandler) AppendInstallment(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appfees.InstallmentInput
	if !h.bindJSON(c, &req) {
		return
	}

	ledger, err := h.ledgers.AppendInstallment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ledger)
}

// RecordPayment marks one installment paid
// POST /ledgers/:id/payments
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req appfees.RecordPaymentInput
	if !h.bindJSON(c, &req) {
		return
	}

	payment, err := h.ledgers.RecordPayment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.L(c.Request.Context()).Info("payment recorded",
		zap.String("ledger_id", id.String()),
		zap.Int("installment_id", req.InstallmentID),
		zap.String("recorded_by", operator(c)),
	)
	h.Success(c, payment)
}

// Delete removes a ledger and its schedule
// DELETE /ledgers/:id
func (h *LedgerHandler) Delete(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.ledgers.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListDue returns a student's due-today and overdue installments
// GET /students/:id/installments/due
func (h *LedgerHandler) ListDue(c *gin.Context) {
	studentID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	dues, err := h.ledgers.ListDueInstallments(c.Request.Context(), studentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dues)
}
