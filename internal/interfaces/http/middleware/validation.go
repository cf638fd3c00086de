package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
)

const (
	RequestIDKey        = "X-Request-ID"
	RequestIDContextKey = "request_id"
)

var validatorOnce sync.Once

// SetupValidator configures gin's validator: errors name fields after their
// json (or form) tag, and the academic_year tag accepts "YYYY-YYYY+1".
func SetupValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(wireName)
		_ = v.RegisterValidation("academic_year", func(fl validator.FieldLevel) bool {
			return fees.ValidateAcademicYear(fl.Field().String()) == nil
		})
	})
}

func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// FormatValidationErrors builds the 400 envelope for a failed bind. Field
// errors become details; a body that does not decode becomes one "body" detail.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs):
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	case err != nil:
		details = []dto.ValidationDetail{{Field: "body", Message: "Malformed request body"}}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes FormatValidationErrors as a 400
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID(c)))
}

func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDContextKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

var tagMessages = map[string]string{
	"required":      "This field is required",
	"email":         "Invalid email format",
	"uuid":          "Invalid UUID format",
	"academic_year": "Must be an academic year such as 2024-2025",
	"numeric":       "Must be numeric",
}

// paramMessages are prefixes completed by the tag parameter
var paramMessages = map[string]string{
	"datetime": "Must be a date in the format ",
	"oneof":    "Must be one of: ",
	"len":      "Must be exactly ",
	"gte":      "Must be greater than or equal to ",
	"lte":      "Must be less than or equal to ",
	"gt":       "Must be greater than ",
	"lt":       "Must be less than ",
}

func fieldMessage(fe validator.FieldError) string {
	tag := fe.Tag()
	if msg, ok := tagMessages[tag]; ok {
		return msg
	}
	if prefix, ok := paramMessages[tag]; ok {
		return prefix + fe.Param()
	}
	switch tag {
	case "min", "max":
		bound := "at least "
		if tag == "max" {
			bound = "at most "
		}
		msg := "Must be " + bound + fe.Param()
		if fe.Kind() == reflect.String {
			msg += " characters"
		}
		return msg
	}
	return "Invalid value"
}
