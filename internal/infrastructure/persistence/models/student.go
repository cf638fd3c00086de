package models

import (
	"github.com/schoolfees/backend/internal/domain/student"
)

// StudentModel is the persistence model for a Student
type StudentModel struct {
	BaseModel
	AdmissionNumber string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name            string `gorm:"type:varchar(200);not null"`
	ClassName       string `gorm:"type:varchar(50)"`
	Email           string `gorm:"type:varchar(200)"`
	GuardianEmail   string `gorm:"type:varchar(200)"`
	Active          bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// ToDomain converts the persistence model to a domain Student
func (m *StudentModel) ToDomain() *student.Student {
	return &student.Student{
		BaseEntity:      m.BaseModel.ToDomain(),
		AdmissionNumber: m.AdmissionNumber,
		Name:            m.Name,
		ClassName:       m.ClassName,
		Email:           m.Email,
		GuardianEmail:   m.GuardianEmail,
		Active:          m.Active,
	}
}

// FromDomain populates the persistence model from a domain Student
func (m *StudentModel) FromDomain(s *student.Student) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.AdmissionNumber = s.AdmissionNumber
	m.Name = s.Name
	m.ClassName = s.ClassName
	m.Email = s.Email
	m.GuardianEmail = s.GuardianEmail
	m.Active = s.Active
}

// AllModels lists every model for AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&StudentModel{},
		&FeeLedgerModel{},
		&InstallmentModel{},
		&NotificationModel{},
	}
}
