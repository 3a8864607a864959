// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/example/image-posts/internal/db"
)

// NewSQLite returns a migrated in-memory database private to t.
func NewSQLite(t testing.TB) *db.Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	database, err := db.Open(sqlite.Open(dsn), "silent")
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	database.SQL.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate())

	t.Cleanup(func() { _ = database.Close() })
	return database
}
