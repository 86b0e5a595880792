// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookhive/internal/database"
)

// New returns a fresh database file under t.TempDir() with the full schema.
// A file is used rather than ":memory:" so that every pooled connection sees
// the same data.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bookhive_test.db")
	db, err := gorm.Open(sqlite.Open(path+"?"+database.SQLiteWriteOptions), database.GormConfig(logger.Silent))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}
