package student

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// Student is the minimal view of a student the fee subsystem needs:
// identity, display name, and where to send reminders.
type Student struct {
	shared.BaseEntity
	AdmissionNumber string
	Name            string
	ClassName       string
	Email           string
	GuardianEmail   string
	Active          bool
}

// NewStudent creates a new active student
func NewStudent(admissionNumber, name, className, email, guardianEmail string) (*Student, error) {
	admissionNumber = strings.TrimSpace(admissionNumber)
	name = strings.TrimSpace(name)
	if admissionNumber == "" {
		return nil, shared.ValidationError("admission number is required")
	}
	if name == "" {
		return nil, shared.ValidationError("student name is required")
	}
	for _, addr := range []string{email, guardianEmail} {
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, shared.ValidationError("invalid email address: " + addr)
		}
	}
	return &Student{
		BaseEntity:      shared.NewBaseEntity(),
		AdmissionNumber: admissionNumber,
		Name:            name,
		ClassName:       className,
		Email:           email,
		GuardianEmail:   guardianEmail,
		Active:          true,
	}, nil
}

// ReminderEmail returns the guardian's address when present, else the
// student's own. Empty means email reminders are skipped.
func (s *Student) ReminderEmail() string {
	if s.GuardianEmail != "" {
		return s.GuardianEmail
	}
	return s.Email
}

// Repository defines the persistence contract for students
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Student, error)
	FindByAdmissionNumber(ctx context.Context, admissionNumber string) (*Student, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Student, int64, error)
	Save(ctx context.Context, s *Student) error
}
