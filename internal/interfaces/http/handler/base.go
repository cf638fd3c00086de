package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/logger"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
	"github.com/schoolfees/backend/internal/interfaces/http/middleware"
)

// BaseHandler writes the response envelope shared by all fee endpoints
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDContextKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDKey)
}

// operator is the authenticated staff member's user ID, empty for
// unauthenticated routes
func operator(c *gin.Context) string {
	return middleware.GetJWTUserID(c)
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta writes a page of results with its pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail writes an error envelope; the status follows from the code
func (h *BaseHandler) Fail(c *gin.Context, code, message string) {
	c.JSON(dto.StatusFor(code), dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// HandleError translates a service error into a response. Domain errors keep
// their message; anything else is logged and hidden behind a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Fail(c, dto.APICode(domainErr.Code), domainErr.Message)
		return
	}

	logger.L(c.Request.Context()).Error("unhandled error",
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	h.Fail(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Fail(c, dto.ErrCodeBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON and bindQuery write a 400 with per-field details when binding fails
func (h *BaseHandler) bindJSON(c *gin.Context, obj any) bool {
	return h.bound(c, c.ShouldBindJSON(obj))
}

func (h *BaseHandler) bindQuery(c *gin.Context, obj any) bool {
	return h.bound(c, c.ShouldBindQuery(obj))
}

func (h *BaseHandler) bound(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(err, getRequestID(c)))
	return false
}
