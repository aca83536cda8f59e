// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/config"
	"github.com/fuomag9/uptimed/internal/database"
	"github.com/fuomag9/uptimed/internal/store"
)

// New returns a migrated store backed by a SQLite file in t.TempDir().
func New(t testing.TB) *store.Store {
	t.Helper()

	cfg := config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "uptime.db"),
	}
	require.NoError(t, database.RunMigrations(cfg))

	db, err := database.Connect(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	return store.New(db)
}
