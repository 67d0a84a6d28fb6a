// gormtool\paging.go
package gormtool

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Keyed 以自增主键翻页的模型
type Keyed interface {
	PrimaryKey() int64
}

// PageFunc 处理一页数据，返回错误即中止翻页
type PageFunc[T any] func(page []T) error

// EachPage 按主键升序逐页读取 query 对应的表，每页处理完才读下一页。
// query 可以带 Preload / Select，翻页条件用 "<table>.id > ?"。
func EachPage[T Keyed](ctx context.Context, query *gorm.DB, size int, fn PageFunc[T]) error {
	if size <= 0 {
		return fmt.Errorf("gormtool: invalid page size %d", size)
	}

	base := query.WithContext(ctx)
	table, err := tableName[T](base)
	if err != nil {
		return err
	}
	idColumn := table + ".id"

	var last int64
	for {
		var page []T
		err := base.
			Where(fmt.Sprintf("%s > ?", idColumn), last).
			Order(idColumn + " ASC").
			Limit(size).
			Find(&page).Error
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(page); err != nil {
			return err
		}

		last = page[len(page)-1].PrimaryKey()
		if len(page) < size {
			return nil
		}
	}
}

func tableName[T any](db *gorm.DB) (string, error) {
	stmt := &gorm.Statement{DB: db}
	var model T
	if err := stmt.Parse(&model); err != nil {
		return "", fmt.Errorf("gormtool: parse %T: %w", model, err)
	}
	return stmt.Schema.Table, nil
}

// CreateInBatches 批量插入，不级联保存关联
func CreateInBatches[T any](ctx context.Context, db *gorm.DB, rows []T, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return db.WithContext(ctx).Omit(clause.Associations).CreateInBatches(rows, batchSize).Error
}

// Chunk 把切片按 size 切分，用于 IN 查询避免参数过多
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size:size])
	}
	return append(chunks, items)
}
