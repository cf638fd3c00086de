package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolfees/backend/internal/interfaces/http/dto"
)

// echoLength responds with the number of body bytes it managed to read, or
// 413 when the reader hit the limit
func echoLength(c *gin.Context) {
	b, err := io.ReadAll(c.Request.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.String(http.StatusRequestEntityTooLarge, "limit %d", tooLarge.Limit)
		return
	}
	c.String(http.StatusOK, "%d", len(b))
}

func TestBodyLimit(t *testing.T) {
	const limit = 64

	tests := []struct {
		name          string
		method        string
		body          string
		contentLength int64
		wantStatus    int
		wantBody      string
	}{
		{"payment within limit", http.MethodPost, `{"installment_id":1}`, 20, http.StatusOK, "20"},
		{"no body", http.MethodGet, "", 0, http.StatusOK, "0"},
		{"declared length over limit", http.MethodPost, strings.Repeat("x", 100), 100, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge},
		{"undeclared length over limit", http.MethodPost, strings.Repeat("x", 100), -1, http.StatusRequestEntityTooLarge, "limit 64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID(), BodyLimit(limit))
			r.Handle(tt.method, "/ledgers", echoLength)

			req := httptest.NewRequest(tt.method, "/ledgers", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
