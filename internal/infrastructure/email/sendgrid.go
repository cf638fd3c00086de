package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/schoolfees/backend/internal/infrastructure/config"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

// SendGridSender sends mail through the SendGrid v3 API
type SendGridSender struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	client     *rest.Client
}

// NewSendGridSender creates a sender from the email configuration
func NewSendGridSender(cfg config.EmailConfig, appName string) *SendGridSender {
	host := cfg.SendGridHost
	if host == "" {
		host = defaultSendGridHost
	}
	fromName := cfg.FromName
	if fromName == "" {
		fromName = appName
	}
	prefix := ""
	if appName != "" {
		prefix = "[" + appName + "] "
	}
	return &SendGridSender{
		key:        cfg.SendGridAPIKey,
		host:       host,
		from:       sgmail.NewEmail(fromName, cfg.FromAddress),
		subjPrefix: prefix,
		client:     &rest.Client{HTTPClient: &http.Client{}},
	}
}

func (s *SendGridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// Send posts the message and treats any 4xx/5xx answer as a failure.
// The request carries ctx, so its deadline bounds the whole call.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	sgReq := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	sgReq.Method = rest.Post
	sgReq.Body = sgmail.GetRequestBody(s.prepare(msg))

	httpReq, err := rest.BuildRequestObject(sgReq)
	if err != nil {
		return fmt.Errorf("sendgrid build request: %w", err)
	}

	httpRes, err := s.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return fmt.Errorf("sendgrid read response: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

var _ Sender = (*SendGridSender)(nil)
