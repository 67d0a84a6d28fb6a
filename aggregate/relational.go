// aggregate\relational.go
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/models"
)

const countChunkSize = 500

// Relational 基于关系库的聚合：一次联表查询取窗口内的 (标签, 文章)，
// 点赞数和评论数用分组计数查询，在内存中合并。
type Relational struct {
	tool *gormtool.Tool
}

func NewRelational(tool *gormtool.Tool) *Relational {
	return &Relational{tool: tool}
}

type tagPostRow struct {
	Tag        string
	PostID     int64
	Title      string
	Views      int64
	AuthorID   int64
	AuthorName string
}

type countRow struct {
	PostID int64
	Total  int64
}

func (r *Relational) Aggregate(ctx context.Context, w Window) (Result, error) {
	w = w.UTC()
	start := time.Now()
	result, err := r.aggregate(ctx, w)
	r.tool.LogOperation(ctx, "aggregate_relational", nil, time.Since(start), err, map[string]interface{}{
		"start": w.Start.Format(time.RFC3339),
		"end":   w.End.Format(time.RFC3339),
		"tags":  len(result),
	})
	return result, err
}

func (r *Relational) aggregate(ctx context.Context, w Window) (Result, error) {
	var rows []tagPostRow
	err := r.tool.DB.WithContext(ctx).Model(&models.PostTag{}).
		Select("tags.name AS tag, posts.id AS post_id, posts.title, posts.views, users.id AS author_id, users.name AS author_name").
		Joins("JOIN tags ON tags.id = post_tag.tag_id").
		Joins("JOIN posts ON posts.id = post_tag.post_id").
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.created_at >= ? AND posts.created_at <= ?", w.Start, w.End).
		Order("tags.name ASC, posts.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query tagged posts: %w", err)
	}

	postIDs := make([]int64, 0, len(rows))
	seen := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if !seen[row.PostID] {
			seen[row.PostID] = true
			postIDs = append(postIDs, row.PostID)
		}
	}

	likes, err := r.countBy(ctx, &models.PostLike{}, postIDs)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	comments, err := r.countBy(ctx, &models.Comment{}, postIDs)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}

	byTag := make(map[string][]PostSummary)
	for _, row := range rows {
		byTag[row.Tag] = append(byTag[row.Tag], PostSummary{
			ID:           row.PostID,
			Title:        row.Title,
			Views:        row.Views,
			Author:       Author{ID: row.AuthorID, Name: row.AuthorName},
			LikeCount:    likes[row.PostID],
			CommentCount: comments[row.PostID],
		})
	}

	// 数据库排序规则未必是字节序，这里统一再排一次
	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	result := make(Result, 0, len(tags))
	for _, tag := range tags {
		posts := byTag[tag]
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
		result = append(result, newTagAggregate(tag, posts))
	}
	return result, nil
}

// countBy SELECT post_id, COUNT(id) ... GROUP BY post_id，按 IN 列表分块
func (r *Relational) countBy(ctx context.Context, model interface{}, postIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(postIDs))
	for _, chunk := range gormtool.Chunk(postIDs, countChunkSize) {
		var rows []countRow
		err := r.tool.DB.WithContext(ctx).Model(model).
			Select("post_id, COUNT(id) AS total").
			Where("post_id IN ?", chunk).
			Group("post_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			counts[row.PostID] = row.Total
		}
	}
	return counts, nil
}
