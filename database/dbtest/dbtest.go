// Package dbtest opens throwaway sqlite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"dcorpbot/config"
	"dcorpbot/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.Database{
		Type: config.DatabaseSQLite,
		Path: filepath.Join(t.TempDir(), "bot.db"),
	}, zap.NewNop(), false)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
