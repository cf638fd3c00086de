package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// testContext returns a bare gin context over GET /
func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestGetRequestID_PrefersContextOverHeader(t *testing.T) {
	c, _ := testContext()
	assert.Empty(t, getRequestID(c))

	c.Request.Header.Set(middleware.RequestIDKey, "from-header")
	assert.Equal(t, "from-header", getRequestID(c))

	c.Set(middleware.RequestIDContextKey, "from-context")
	assert.Equal(t, "from-context", getRequestID(c))
}

func TestOperator(t *testing.T) {
	c, _ := testContext()
	assert.Empty(t, operator(c))

	id := uuid.NewString()
	c.Set(middleware.JWTUserIDKey, id)
	assert.Equal(t, id, operator(c))
}

func TestBaseHandler_SuccessStatuses(t *testing.T) {
	h := &BaseHandler{}
	cases := map[string]struct {
		write  func(*gin.Context)
		status int
	}{
		"ok":       {func(c *gin.Context) { h.Success(c, "x") }, http.StatusOK},
		"created":  {func(c *gin.Context) { h.Created(c, map[string]string{"id": "1"}) }, http.StatusCreated},
		"accepted": {func(c *gin.Context) { h.Accepted(c, map[string]string{"job_id": "j"}) }, http.StatusAccepted},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, w := testContext()
			tc.write(c)
			assert.Equal(t, tc.status, w.Code)
			assert.True(t, decodeResponse(t, w).Success)
		})
	}

	t.Run("no content has an empty body", func(t *testing.T) {
		r := gin.New()
		r.DELETE("/x", func(c *gin.Context) { h.NoContent(c) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/x", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Zero(t, w.Body.Len())
	})
}

func TestBaseHandler_SuccessWithMeta(t *testing.T) {
	c, w := testContext()
	(&BaseHandler{}).SuccessWithMeta(c, []int{1, 2}, 45, 2, 20)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestBaseHandler_FailCarriesRequestID(t *testing.T) {
	c, w := testContext()
	c.Set(middleware.RequestIDContextKey, "req-123")

	(&BaseHandler{}).Fail(c, dto.ErrCodeNoPendingFees, "nothing owed")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeNoPendingFees, resp.Error.Code)
	assert.Equal(t, "nothing owed", resp.Error.Message)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"already exists", shared.ErrAlreadyExists, http.StatusConflict, dto.ErrCodeAlreadyExists},
		{"invalid state", shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"validation", shared.ValidationError("amount must not be negative"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"no pending fees", shared.ErrNoPendingFees, http.StatusUnprocessableEntity, dto.ErrCodeNoPendingFees},
		{"external dispatch", shared.ErrExternalDispatch, http.StatusBadGateway, dto.ErrCodeExternalDispatch},
		{"concurrent modification", shared.ErrConcurrentModification, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"wrapped", fmt.Errorf("load ledger: %w", shared.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"plain error", assert.AnError, http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext()
			(&BaseHandler{}).HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeResponse(t, w).Error.Code)
		})
	}

	t.Run("internal details are hidden", func(t *testing.T) {
		c, w := testContext()
		(&BaseHandler{}).HandleError(c, fmt.Errorf("pq: password authentication failed"))
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("nil writes nothing", func(t *testing.T) {
		c, w := testContext()
		(&BaseHandler{}).HandleError(c, nil)
		assert.Zero(t, w.Body.Len())
	})
}

func TestBaseHandler_ParseUUIDParam(t *testing.T) {
	h := &BaseHandler{}
	r := gin.New()
	r.GET("/ledgers/:id", func(c *gin.Context) {
		if id, ok := h.parseUUIDParam(c, "id"); ok {
			c.String(http.StatusOK, id.String())
		}
	})

	id := uuid.New()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ledgers/"+id.String(), nil))
	assert.Equal(t, id.String(), w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ledgers/42", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
}

func TestBaseHandler_BindJSON(t *testing.T) {
	type body struct {
		AcademicYear string `json:"academic_year" binding:"required"`
	}
	h := &BaseHandler{}
	r := gin.New()
	r.POST("/ledgers", func(c *gin.Context) {
		var b body
		if h.bindJSON(c, &b) {
			c.String(http.StatusOK, b.AcademicYear)
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ledgers", strings.NewReader(`{"academic_year":"2024-2025"}`)))
	assert.Equal(t, "2024-2025", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ledgers", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.NotEmpty(t, resp.Error.Details)
	assert.Equal(t, "academic_year", resp.Error.Details[0].Field)
}
