package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appstudent "github.com/schoolfees/backend/internal/application/student"
)

// StudentService is the student directory as seen by the HTTP layer
type StudentService interface {
	Create(ctx context.Context, in appstudent.CreateStudentInput) (*appstudent.StudentResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*appstudent.StudentResponse, error)
	List(ctx context.Context, filter appstudent.ListStudentsFilter) ([]appstudent.StudentResponse, int64, error)
}

// StudentHandler handles student directory endpoints
type StudentHandler struct {
	BaseHandler
	students StudentService
}

// NewStudentHandler creates a new StudentHandler
func NewStudentHandler(students StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// Create registers a student
// POST /students
func (h *StudentHandler) Create(c *gin.Context) {
	var req appstudent.CreateStudentInput
	if !h.bindJSON(c, &req) {
		return
	}

	st, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, st)
}

// GetByID returns one student
// GET /students/:id
func (h *StudentHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	st, err := h.students.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, st)
}

// List returns a page of students
// GET /students
func (h *StudentHandler) List(c *gin.Context) {
	var filter appstudent.ListStudentsFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	list, total, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, filter.Page, filter.PageSize)
}
