package gormtool

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	cachePrefix   = "dualstore"
	scanBatchSize = 100
)

// CacheKey dualstore:<namespace>:<part>:<part>...
func CacheKey(namespace string, parts ...string) string {
	return strings.Join(append([]string{cachePrefix, namespace}, parts...), ":")
}

// GetFromCache 未配置 Redis、未命中或解码失败都返回 false
func (t *Tool) GetFromCache(ctx context.Context, key string, result interface{}) bool {
	if t.RedisClient == nil {
		return false
	}
	data, err := t.RedisClient.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, result) == nil
}

func (t *Tool) SetToCache(ctx context.Context, key string, data interface{}) error {
	if t.RedisClient == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return t.RedisClient.Set(ctx, key, payload, CacheTTL).Err()
}

// InvalidateCache 删除 namespace 下的所有键，返回删除数量
func (t *Tool) InvalidateCache(ctx context.Context, namespace string) (int, error) {
	if t.RedisClient == nil {
		return 0, nil
	}

	deleted := 0
	iter := t.RedisClient.Scan(ctx, 0, CacheKey(namespace, "*"), scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := t.RedisClient.Del(ctx, batch...).Result()
		deleted += int(n)
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if err := flush(); err != nil {
		return deleted, err
	}

	t.LogOperation(ctx, "invalidate_cache", nil, 0, nil, map[string]interface{}{
		"namespace": namespace,
		"deleted":   deleted,
	})
	return deleted, nil
}

// parseRedisInfo 按 "# Section" 分组
func parseRedisInfo(info string) map[string]map[string]string {
	sections := make(map[string]map[string]string)
	current := "default"
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			current = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "#")))
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if sections[current] == nil {
			sections[current] = make(map[string]string)
		}
		sections[current][key] = value
	}
	return sections
}
