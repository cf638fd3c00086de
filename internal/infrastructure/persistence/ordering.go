package persistence

import (
	"strings"

	"gorm.io/gorm/clause"

	"github.com/schoolfees/backend/internal/domain/shared"
)

const defaultSortColumn = "created_at"

// sortColumns whitelists the columns a list query may be ordered by
type sortColumns map[string]bool

var (
	ledgerSortColumns = sortColumns{
		"created_at": true, "updated_at": true, "academic_year": true,
		"total_fees": true, "paid_amount": true, "remaining_fees": true, "payment_status": true,
	}
	notificationSortColumns = sortColumns{
		"created_at": true, "type": true, "status": true, "sent_date": true, "due_date": true,
	}
	studentSortColumns = sortColumns{
		"created_at": true, "admission_number": true, "name": true, "class_name": true,
	}
)

// orderBy returns the ORDER BY clause for f. Unknown columns fall back to
// created_at and anything but "asc" sorts descending.
func (s sortColumns) orderBy(f shared.Filter) clause.OrderByColumn {
	col := strings.TrimSpace(f.OrderBy)
	if !s[col] {
		col = defaultSortColumn
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: col},
		Desc:   !strings.EqualFold(strings.TrimSpace(f.OrderDir), "asc"),
	}
}
