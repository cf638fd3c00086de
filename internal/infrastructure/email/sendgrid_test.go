package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/schoolfees/backend/internal/infrastructure/config"
)

type capturedMail struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
		Subject string `json:"subject"`
	} `json:"personalizations"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func TestSendGridSender_Send(t *testing.T) {
	var got capturedMail
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSendGridSender(config.EmailConfig{
		SendGridAPIKey: "SG.test",
		SendGridHost:   server.URL,
		FromAddress:    "accounts@school.example",
	}, "Fees")

	err := sender.Send(context.Background(), Message{
		To:      mail.Address{Name: "Parent", Address: "parent@example.com"},
		Subject: "Installment 1 overdue",
		Text:    "Please pay",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.test", auth)
	assert.Equal(t, "accounts@school.example", got.From.Email)
	assert.Equal(t, "Fees", got.From.Name)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "[Fees] Installment 1 overdue", got.Personalizations[0].Subject)
	assert.Equal(t, "parent@example.com", got.Personalizations[0].To[0].Email)
	require.Len(t, got.Content, 1)
	assert.Equal(t, "text/plain", got.Content[0].Type)
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	sender := NewSendGridSender(config.EmailConfig{SendGridHost: server.URL}, "")
	err := sender.Send(context.Background(), Message{To: mail.Address{Address: "a@b.c"}, Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendGridSender_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()
	defer close(release)

	sender := NewSendGridSender(config.EmailConfig{SendGridHost: server.URL}, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sender.Send(ctx, Message{To: mail.Address{Address: "a@b.c"}, Subject: "x", Text: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := NewLogSender(zap.New(core))

	require.NoError(t, sender.Send(context.Background(), Message{
		To:      mail.Address{Address: "parent@example.com"},
		Subject: "Payment received",
	}))

	assert.Len(t, sender.Sent(), 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Payment received", logs.All()[0].ContextMap()["subject"])
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(config.EmailConfig{Provider: "log"}, "Fees", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	s, err = NewSender(config.EmailConfig{Provider: "sendgrid"}, "Fees", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, s)

	_, err = NewSender(config.EmailConfig{Provider: "pigeon"}, "Fees", zap.NewNop())
	assert.Error(t, err)
}
