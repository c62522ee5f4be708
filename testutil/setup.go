package testutil

import (
	"path/filepath"
	"testing"

	"github.com/gamelive/server/cache"
	"github.com/gamelive/server/config"
	dbadapter "github.com/gamelive/server/db"
	"github.com/gamelive/server/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates a throwaway SQLite database and runs AutoMigrate.
// A per-test file (not :memory:) keeps every pooled connection on the
// same database; _txlock=immediate plus a busy timeout makes concurrent
// transactions in tests block instead of failing fast.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: path,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates an in-process LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{}) // empty RedisAddr → LocalCache
	require.NoError(t, err, "SetupTestCache: NewCache")
	return c
}
