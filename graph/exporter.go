// graph\exporter.go
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/models"
)

const DefaultPageSize = 200

var constraints = []string{
	"CREATE CONSTRAINT user_sql_id IF NOT EXISTS FOR (u:User) REQUIRE u.sql_id IS UNIQUE",
	"CREATE CONSTRAINT post_sql_id IF NOT EXISTS FOR (p:Post) REQUIRE p.sql_id IS UNIQUE",
	"CREATE CONSTRAINT tag_name IF NOT EXISTS FOR (t:Tag) REQUIRE t.name IS UNIQUE",
}

const (
	mergeTags = `UNWIND $names AS name
MERGE (:Tag {name: name})`

	mergeUsers = `UNWIND $rows AS row
MERGE (u:User {sql_id: row.sql_id})
SET u.name = row.name`

	mergePosts = `UNWIND $rows AS row
MATCH (u:User {sql_id: row.user_id})
MERGE (p:Post {sql_id: row.sql_id})
SET p.title = row.title, p.views = row.views, p.created_at = row.created_at
MERGE (u)-[:WROTE]->(p)`

	mergeLikes = `UNWIND $rows AS row
MATCH (u:User {sql_id: row.user_id}), (p:Post {sql_id: row.post_id})
MERGE (u)-[:LIKED]->(p)`

	mergeTagged = `UNWIND $rows AS row
MATCH (p:Post {sql_id: row.post_id}), (t:Tag {name: row.tag})
MERGE (p)-[:TAGGED]->(t)`
)

// Exporter 把关系库数据以 MERGE 写入 Neo4j，可重复执行
type Exporter struct {
	tool     *gormtool.Tool
	runner   Runner
	pageSize int
}

func NewExporter(tool *gormtool.Tool, runner Runner, pageSize int) *Exporter {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Exporter{tool: tool, runner: runner, pageSize: pageSize}
}

type Report struct {
	Tags     int           `json:"tags"`
	Users    int           `json:"users"`
	Posts    int           `json:"posts"`
	Likes    int           `json:"likes"`
	Tagged   int           `json:"tagged"`
	Duration time.Duration `json:"duration"`
}

func (r Report) Counts() map[string]int {
	return map[string]int{
		"tags":   r.Tags,
		"users":  r.Users,
		"posts":  r.Posts,
		"likes":  r.Likes,
		"tagged": r.Tagged,
	}
}

type row = map[string]interface{}

func (e *Exporter) run(ctx context.Context, query string, params map[string]interface{}) error {
	_, err := e.runner.Run(ctx, query, params)
	return err
}

// Export 顺序：约束、标签、用户、文章（含点赞和标签关系）
func (e *Exporter) Export(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	err := e.export(ctx, &report)
	report.Duration = time.Since(start)

	fields := make(map[string]interface{}, 5)
	for k, v := range report.Counts() {
		fields[k] = v
	}
	e.tool.LogOperation(ctx, "export_graph", nil, report.Duration, err, fields)
	return report, err
}

func (e *Exporter) export(ctx context.Context, report *Report) error {
	for _, stmt := range constraints {
		if err := e.run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	var names []string
	if err := e.tool.DB.WithContext(ctx).Model(&models.Tag{}).Order("id ASC").Pluck("name", &names).Error; err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	if len(names) > 0 {
		if err := e.run(ctx, mergeTags, map[string]interface{}{"names": names}); err != nil {
			return fmt.Errorf("merge tags: %w", err)
		}
	}
	report.Tags = len(names)

	err := gormtool.EachPage(ctx, e.tool.DB.Model(&models.User{}), e.pageSize, func(users []models.User) error {
		rows := make([]interface{}, 0, len(users))
		for _, u := range users {
			rows = append(rows, row{"sql_id": u.ID, "name": u.Name})
		}
		report.Users += len(rows)
		return e.run(ctx, mergeUsers, map[string]interface{}{"rows": rows})
	})
	if err != nil {
		return fmt.Errorf("merge users: %w", err)
	}

	query := e.tool.DB.Model(&models.Post{}).Preload("Likes")
	err = gormtool.EachPage(ctx, query, e.pageSize, func(posts []models.Post) error {
		return e.exportPosts(ctx, posts, report)
	})
	if err != nil {
		return fmt.Errorf("merge posts: %w", err)
	}
	return nil
}

func (e *Exporter) exportPosts(ctx context.Context, posts []models.Post, report *Report) error {
	postRows := make([]interface{}, 0, len(posts))
	postIDs := make([]int64, 0, len(posts))
	var likeRows []interface{}
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		postRows = append(postRows, row{
			"sql_id":     p.ID,
			"user_id":    p.UserID,
			"title":      p.Title,
			"views":      p.Views,
			"created_at": p.CreatedAt.UTC(),
		})
		for _, like := range p.Likes {
			likeRows = append(likeRows, row{"user_id": like.UserID, "post_id": p.ID})
		}
	}

	var tagged []struct {
		PostID int64
		Name   string
	}
	err := e.tool.DB.WithContext(ctx).Model(&models.PostTag{}).
		Select("post_tag.post_id, tags.name").
		Joins("JOIN tags ON tags.id = post_tag.tag_id").
		Where("post_tag.post_id IN ?", postIDs).
		Order("post_tag.id ASC").
		Scan(&tagged).Error
	if err != nil {
		return fmt.Errorf("load post tags: %w", err)
	}
	tagRows := make([]interface{}, 0, len(tagged))
	for _, t := range tagged {
		tagRows = append(tagRows, row{"post_id": t.PostID, "tag": t.Name})
	}

	if err := e.run(ctx, mergePosts, map[string]interface{}{"rows": postRows}); err != nil {
		return err
	}
	if len(likeRows) > 0 {
		if err := e.run(ctx, mergeLikes, map[string]interface{}{"rows": likeRows}); err != nil {
			return err
		}
	}
	if len(tagRows) > 0 {
		if err := e.run(ctx, mergeTagged, map[string]interface{}{"rows": tagRows}); err != nil {
			return err
		}
	}

	report.Posts += len(postRows)
	report.Likes += len(likeRows)
	report.Tagged += len(tagRows)
	return nil
}
