package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DialectSQLite, cfg.Relational.Dialect)
	assert.Equal(t, 100, cfg.Seed.Users)
	assert.Equal(t, 10, cfg.Seed.MaxPostsPerUser)
	assert.Equal(t, 20, cfg.Projector.PostPageSize)
	assert.True(t, cfg.Compare.Posts)

	start, end, err := cfg.WindowBounds()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), end)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	body := []byte("relational:\n  dialect: mysql\n  dsn: admin:password@tcp(127.0.0.1:3306)/db_demo\nseed:\n  users: 7\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("DUALSTORE_MONGO_DATABASE", "from_env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DialectMySQL, cfg.Relational.Dialect)
	assert.Equal(t, 7, cfg.Seed.Users)
	assert.Equal(t, "from_env", cfg.Mongo.Database)
}

func TestLoadRejectsUnknownDialect(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DUALSTORE_RELATIONAL_DIALECT", "oracle")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2025-06-30T12:00:00+08:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 4, 0, 0, 0, time.UTC), got)

	_, err = ParseTime("June 30")
	assert.Error(t, err)
}
