// Package dbtest provides an in-memory relational store for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/models"
)

// Open returns a migrated in-memory sqlite database private to the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 每个连接都是独立的内存库，只保留一个连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tool := gormtool.NewTool(db, nil, gormtool.NopLogger{})
	require.NoError(t, tool.Migrate(context.Background(), models.All()...))
	return db
}

// Tool wraps db with a silent logger.
func Tool(db *gorm.DB) *gormtool.Tool {
	return gormtool.NewTool(db, nil, gormtool.NopLogger{})
}
