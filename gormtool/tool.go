// gormtool\tool.go
package gormtool

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 常量定义
const (
	CacheTTL         = 5 * time.Minute
	DefaultBatchSize = 500
)

// Tool 关系库工具：事务、分页、批量写入、日志、缓存
type Tool struct {
	DB          *gorm.DB
	RedisClient *redis.Client
	Logger      Logger
	EnableLog   bool
}

// NewTool 创建新的工具，logger 为 nil 时使用默认 logger，redisClient 可为 nil
func NewTool(db *gorm.DB, redisClient *redis.Client, logger Logger) *Tool {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	return &Tool{
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
		EnableLog:   true,
	}
}

// LogOperation 记录操作日志
// ctx: 请求上下文
// operation: 操作名称
// model: 操作的模型
// duration: 操作耗时
// err: 操作错误
// additionalFields: 额外字段
// 日志记录示例
//
//	t.LogOperation(ctx, "generate_users", &models.User{}, time.Since(start), err, map[string]interface{}{
//		"count": n,
//	})
func (t *Tool) LogOperation(ctx context.Context, operation string, model interface{}, duration time.Duration, err error, additionalFields map[string]interface{}) {
	if !t.EnableLog {
		return
	}

	fields := map[string]interface{}{
		"operation": operation,
		"duration":  duration.String(),
	}
	if model != nil {
		fields["model"] = fmt.Sprintf("%T", model)
	}

	if err != nil {
		fields["error"] = err.Error()
	}

	for k, v := range additionalFields {
		fields[k] = v
	}

	if err != nil {
		t.Logger.Error(ctx, "操作失败", fields)
	} else {
		t.Logger.Info(ctx, "操作成功", fields)
	}
}

// 事务相关方法
type TxFunc func(tx *gorm.DB) error

// WithTransaction 执行事务
func (t *Tool) WithTransaction(ctx context.Context, fn TxFunc) error {
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

// Migrate 按依赖顺序建表
func (t *Tool) Migrate(ctx context.Context, models ...interface{}) error {
	start := time.Now()
	err := t.DB.WithContext(ctx).AutoMigrate(models...)
	t.LogOperation(ctx, "migrate", nil, time.Since(start), err, map[string]interface{}{"tables": len(models)})
	return err
}

// Drop 按依赖的逆序删表
func (t *Tool) Drop(ctx context.Context, models ...interface{}) error {
	start := time.Now()
	reversed := make([]interface{}, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		reversed = append(reversed, models[i])
	}
	err := t.DB.WithContext(ctx).Migrator().DropTable(reversed...)
	t.LogOperation(ctx, "drop", nil, time.Since(start), err, map[string]interface{}{"tables": len(models)})
	return err
}
