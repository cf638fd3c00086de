// Package models contains GORM persistence models that map to database tables.
// Domain entities stay free of ORM tags; each model carries ToDomain/FromDomain
// mappers and the repositories in the parent package only touch models.
//
//   - base.go: BaseModel and AggregateModel shared columns
//   - fees.go: fee_ledgers and installments
//   - notification.go: notifications
//   - student.go: students
package models
