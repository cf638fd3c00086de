package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolfees/backend/internal/domain/shared"
)

func TestSortColumns_OrderBy(t *testing.T) {
	tests := []struct {
		name    string
		orderBy string
		dir     string
		column  string
		desc    bool
	}{
		{"defaults", "", "", "created_at", true},
		{"whitelisted ascending", "due_date", "ASC", "due_date", false},
		{"direction is case-insensitive", " status ", " asc ", "status", false},
		{"unknown column", "guardian_email", "asc", "created_at", false},
		{"injection in column", "type; DROP TABLE notifications;--", "desc", "created_at", true},
		{"injection in direction", "type", "ASC; DROP TABLE notifications;--", "type", true},
		{"column names are case sensitive", "TYPE", "", "created_at", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notificationSortColumns.orderBy(shared.Filter{OrderBy: tt.orderBy, OrderDir: tt.dir})
			assert.Equal(t, tt.column, got.Column.Name)
			assert.Equal(t, tt.desc, got.Desc)
		})
	}
}

func TestSortColumns_PerTable(t *testing.T) {
	assert.Equal(t, "remaining_fees", ledgerSortColumns.orderBy(shared.Filter{OrderBy: "remaining_fees"}).Column.Name)
	assert.Equal(t, "created_at", ledgerSortColumns.orderBy(shared.Filter{OrderBy: "name"}).Column.Name)
	assert.Equal(t, "name", studentSortColumns.orderBy(shared.Filter{OrderBy: "name"}).Column.Name)
}
