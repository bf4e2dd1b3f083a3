// Package dbtest opens isolated in-memory SQLite databases carrying the full
// schema, for repository and service tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/migrate"
)

var counter atomic.Int64

// Open returns a migrated connection private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:bazaar_test_%d?mode=memory&cache=shared&_foreign_keys=on", counter.Add(1))
	conn, err := gorm.Open(sqlite.Open(name), db.GormConfig())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// a single connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	for _, stmt := range migrate.SQLitePartialIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create index: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a *db.Client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromGorm(conn), conn
}
