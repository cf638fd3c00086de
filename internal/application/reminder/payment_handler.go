package reminder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// PaymentConfirmationHandler sends the payment confirmation when an
// installment is paid. It runs on the publishing goroutine, inside the
// ledger lock held by the ledger service, so it must not take that lock.
type PaymentConfirmationHandler struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewPaymentConfirmationHandler creates the handler
func NewPaymentConfirmationHandler(dispatcher *Dispatcher, logger *zap.Logger) *PaymentConfirmationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentConfirmationHandler{dispatcher: dispatcher, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *PaymentConfirmationHandler) EventTypes() []string {
	return []string{fees.EventTypeInstallmentPaid}
}

// Handle implements shared.EventHandler
func (h *PaymentConfirmationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*fees.InstallmentPaidEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", event, event.EventType())
	}

	n, err := h.dispatcher.SendPaymentConfirmation(ctx, PaymentConfirmation{
		StudentID:            e.StudentID,
		LedgerID:             e.LedgerID,
		InstallmentID:        e.InstallmentID,
		Amount:               e.Amount,
		LateFee:              e.LateFee,
		PaymentMode:          e.PaymentMode,
		TransactionReference: e.TransactionReference,
		PaidDate:             e.PaidDate,
	})
	if err != nil {
		return fmt.Errorf("payment confirmation for installment %s: %w", e.InstallmentID, err)
	}

	h.logger.Debug("payment confirmation sent",
		zap.String("notification_id", n.ID.String()),
		zap.String("ledger_id", e.LedgerID.String()),
		zap.Int("sequence", e.Sequence),
	)
	return nil
}

var _ shared.EventHandler = (*PaymentConfirmationHandler)(nil)
