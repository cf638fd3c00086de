package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolfees/backend/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add fee ledgers", "add_fee_ledgers"},
		{"Add-Late-Fee", "add_late_fee"},
		{"ADD_PAYMENT_MODE", "add_payment_mode"},
		{"add__installment__index", "add_installment_index"},
		{"Backfill 2025", "backfill_2025"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	mf, err := createMigrationAt(dir, "add late fee column", "Track accrued late fees per installment", now)
	require.NoError(t, err)

	assert.Equal(t, "20250304050607", mf.Version)
	assert.Equal(t, filepath.Join(dir, "20250304050607_add_late_fee_column.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20250304050607_add_late_fee_column.down.sql"), mf.DownPath)

	upContent, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "add late fee column")
	assert.Contains(t, string(upContent), "Track accrued late fees per installment")
	assert.Contains(t, string(upContent), "2025-03-04T05:06:07Z")

	downContent, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "Rollback")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "test", "test migration")
	require.NoError(t, err)
	assert.Len(t, mf.Version, 14)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateMigration(dir, "!!!", "nothing usable")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_ledgers.up.sql":   {Data: []byte("-- up")},
		"000002_add_ledgers.down.sql": {Data: []byte("-- down")},
		"000001_init_schema.up.sql":   {Data: []byte("-- up")},
		"000001_init_schema.down.sql": {Data: []byte("-- down")},
		"README.md":                   {Data: []byte("docs")},
		"subdir.up.sql/placeholder":   {Data: []byte("x")},
		"000003_add_notices.up.sql":   {Data: []byte("-- up")},
		"000003_add_notices.down.sql": {Data: []byte("-- down")},
	}

	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_init_schema",
		"000002_add_ledgers",
		"000003_add_notices",
	}, names)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	names, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListMigrations_EmbeddedSchema(t *testing.T) {
	names, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.True(t, strings.HasSuffix(names[0], "_create_students"))
	assert.True(t, strings.HasSuffix(names[1], "_create_fee_ledgers"))
	assert.True(t, strings.HasSuffix(names[2], "_create_notifications"))

	for _, name := range names {
		_, err := migrations.FS.Open(name + ".down.sql")
		assert.NoError(t, err, "missing down migration for %s", name)
	}
}
