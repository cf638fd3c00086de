package persistence

import (
	"errors"

	"gorm.io/gorm"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// translateError maps GORM errors to domain errors. The connection is opened
// with TranslateError so unique violations surface as gorm.ErrDuplicatedKey
// on both PostgreSQL and SQLite.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	default:
		return err
	}
}
