package dto

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolfees/backend/internal/domain/shared"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeNoPendingFees, http.StatusUnprocessableEntity},
		{ErrCodeExternalDispatch, http.StatusBadGateway},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		// domain codes resolve through their API code
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeAlreadyExists, http.StatusConflict},
		{shared.CodeInvalidState, http.StatusUnprocessableEntity},
		{shared.CodeNoPendingFees, http.StatusUnprocessableEntity},
		{shared.CodeConcurrentModification, http.StatusConflict},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFor(tt.code))
		})
	}
}

func TestAPICode(t *testing.T) {
	assert.Equal(t, ErrCodeNoPendingFees, APICode(shared.CodeNoPendingFees))
	assert.Equal(t, ErrCodeExternalDispatch, APICode(shared.CodeExternalDispatch))
	assert.Equal(t, ErrCodeValidation, APICode(shared.CodeValidation))
	assert.Equal(t, ErrCodeNotFound, APICode(ErrCodeNotFound), "API codes pass through")
	assert.Equal(t, "CUSTOM", APICode("CUSTOM"))
}

func TestEveryCodeHasAStatus(t *testing.T) {
	for domain, api := range domainCodes {
		_, ok := codeStatus[api]
		assert.True(t, ok, "domain code %s maps to %s which has no status", domain, api)
	}
	for code := range codeStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), code)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponseWithRequestID(shared.CodeNoPendingFees, "no pending fees for academic year 2024-2025", "req-7")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoPendingFees, resp.Error.Code)
	assert.Equal(t, "req-7", resp.Error.RequestID)
	assert.WithinDuration(t, time.Now(), resp.Error.Timestamp, time.Minute)
	assert.Nil(t, resp.Data)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "academic_year", Message: "must look like 2024-2025"},
		{Field: "installments[0].amount", Message: "must be at least 0"},
	}
	resp := NewValidationErrorResponse("invalid ledger", "req-1", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)

	withHelp := NewErrorResponseWithHelp(ErrCodeRateLimited, "slow down", "", "retry after a minute")
	assert.Equal(t, "retry after a minute", withHelp.Error.Help)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponse(shared.CodeInvalidState, "installment 2 is already paid")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidState, errObj["code"])
	assert.NotContains(t, errObj, "details")
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		page      int
		pageSize  int
		wantSize  int
		wantPages int
	}{
		{"exact pages", 40, 1, 20, 20, 2},
		{"partial last page", 41, 3, 20, 20, 3},
		{"empty", 0, 1, 10, 10, 0},
		{"zero page size uses default", 45, 1, 0, defaultPageSize, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]string{}, tt.total, tt.page, tt.pageSize)
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, tt.total, resp.Meta.Total)
			assert.Equal(t, tt.page, resp.Meta.Page)
			assert.Equal(t, tt.wantSize, resp.Meta.PageSize)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
		})
	}

	plain := NewSuccessResponse(map[string]int{"sent": 3})
	assert.True(t, plain.Success)
	assert.Nil(t, plain.Meta)
	assert.Nil(t, plain.Error)
}
