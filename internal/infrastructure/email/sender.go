// Package email delivers reminder emails. Delivery is best-effort: callers
// persist their own record first and treat a Send error as a logged failure.
package email

import (
	"context"
	"fmt"
	"net/mail"

	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/infrastructure/config"
)

// Message is a single outgoing email
type Message struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

// Sender delivers email messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender selected by cfg.Provider
func NewSender(cfg config.EmailConfig, appName string, logger *zap.Logger) (Sender, error) {
	switch cfg.Provider {
	case "sendgrid":
		return NewSendGridSender(cfg, appName), nil
	case "", "log":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}
