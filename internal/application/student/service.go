// Package student exposes the minimal student directory the fee ledger and
// reminders depend on.
package student

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/domain/student"
)

// CreateStudentInput registers a student
type CreateStudentInput struct {
	AdmissionNumber string `json:"admission_number" binding:"required,min=1,max=50"`
	Name            string `json:"name" binding:"required,min=1,max=200"`
	ClassName       string `json:"class_name" binding:"max=50"`
	Email           string `json:"email" binding:"omitempty,email"`
	GuardianEmail   string `json:"guardian_email" binding:"omitempty,email"`
}

// ListStudentsFilter pages the directory
type ListStudentsFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search" binding:"max=100"`
}

// StudentResponse is a student as returned by the API
type StudentResponse struct {
	ID              uuid.UUID `json:"id"`
	AdmissionNumber string    `json:"admission_number"`
	Name            string    `json:"name"`
	ClassName       string    `json:"class_name,omitempty"`
	Email           string    `json:"email,omitempty"`
	GuardianEmail   string    `json:"guardian_email,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// ToStudentResponse converts a domain student
func ToStudentResponse(s *student.Student) StudentResponse {
	return StudentResponse{
		ID:              s.ID,
		AdmissionNumber: s.AdmissionNumber,
		Name:            s.Name,
		ClassName:       s.ClassName,
		Email:           s.Email,
		GuardianEmail:   s.GuardianEmail,
		Active:          s.Active,
		CreatedAt:       s.CreatedAt,
	}
}

// Service handles student directory operations
type Service struct {
	repo   student.Repository
	logger *zap.Logger
}

// NewService creates a new student Service
func NewService(repo student.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a student. Admission numbers are unique.
func (s *Service) Create(ctx context.Context, in CreateStudentInput) (*StudentResponse, error) {
	existing, err := s.repo.FindByAdmissionNumber(ctx, in.AdmissionNumber)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "admission number already registered")
	}

	st, err := student.NewStudent(in.AdmissionNumber, in.Name, in.ClassName, in.Email, in.GuardianEmail)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}

	s.logger.Info("student registered",
		zap.String("student_id", st.ID.String()),
		zap.String("admission_number", st.AdmissionNumber),
	)
	resp := ToStudentResponse(st)
	return &resp, nil
}

// GetByID returns one student
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*StudentResponse, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToStudentResponse(st)
	return &resp, nil
}

// List returns a page of students ordered by name
func (s *Service) List(ctx context.Context, filter ListStudentsFilter) ([]StudentResponse, int64, error) {
	f := shared.DefaultFilter()
	f.OrderBy = "name"
	f.OrderDir = "asc"
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.Search != "" {
		f.Filters["search"] = filter.Search
	}

	list, total, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]StudentResponse, len(list))
	for i := range list {
		out[i] = ToStudentResponse(&list[i])
	}
	return out, total, nil
}
