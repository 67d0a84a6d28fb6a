package gormtool

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PoolStats 连接池状态
type PoolStats struct {
	Dialect      string `json:"dialect"`
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

func poolStats(dialect string, s sql.DBStats) PoolStats {
	return PoolStats{
		Dialect:      dialect,
		MaxOpen:      s.MaxOpenConnections,
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration.String(),
	}
}

// redisMetrics INFO 按段分组
func (t *Tool) redisMetrics(ctx context.Context) interface{} {
	if t.RedisClient == nil {
		return "Redis 未配置"
	}
	info, err := t.RedisClient.Info(ctx).Result()
	if err != nil {
		return "无法获取 Redis 信息: " + err.Error()
	}
	return parseRedisInfo(info)
}

// GetMetrics 关系库连接池和 Redis 状态
func (t *Tool) GetMetrics(c *gin.Context) {
	metrics := gin.H{}

	if sqlDB, err := t.DB.DB(); err == nil {
		metrics["database"] = poolStats(t.DB.Dialector.Name(), sqlDB.Stats())
	} else {
		metrics["database"] = "无法获取数据库统计信息: " + err.Error()
	}
	metrics["redis"] = t.redisMetrics(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "性能指标获取成功",
		"data":    metrics,
	})
}
