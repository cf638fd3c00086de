package dto

import (
	"net/http"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// API error codes. Every code has exactly one HTTP status, see StatusFor.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodePayloadTooLarge     = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeUnauthorized        = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired        = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid        = "ERR_TOKEN_INVALID"
	ErrCodeForbidden           = "ERR_FORBIDDEN"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeNoPendingFees       = "ERR_NO_PENDING_FEES"
	ErrCodeExternalDispatch    = "ERR_EXTERNAL_DISPATCH"
	ErrCodeServiceUnavailable  = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
)

var codeStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodePayloadTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeTokenInvalid:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeNoPendingFees:       http.StatusUnprocessableEntity,
	ErrCodeExternalDispatch:    http.StatusBadGateway,
	ErrCodeServiceUnavailable:  http.StatusServiceUnavailable,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
}

// domainCodes translates shared.DomainError codes into API codes
var domainCodes = map[string]string{
	shared.CodeNotFound:               ErrCodeNotFound,
	shared.CodeAlreadyExists:          ErrCodeAlreadyExists,
	shared.CodeInvalidState:           ErrCodeInvalidState,
	shared.CodeValidation:             ErrCodeValidation,
	shared.CodeNoPendingFees:          ErrCodeNoPendingFees,
	shared.CodeExternalDispatch:       ErrCodeExternalDispatch,
	shared.CodeConcurrentModification: ErrCodeConcurrencyConflict,
}

// StatusFor returns the HTTP status of an API or domain code. Unknown codes
// are server errors.
func StatusFor(code string) int {
	if status, ok := codeStatus[APICode(code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APICode maps a domain code to its API code and leaves anything else as is
func APICode(code string) string {
	if api, ok := domainCodes[code]; ok {
		return api
	}
	return code
}
