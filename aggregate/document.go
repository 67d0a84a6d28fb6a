// aggregate\document.go
package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/studieren/dualstore/documents"
	"github.com/studieren/dualstore/gormtool"
)

// Document 基于 MongoDB 聚合管道的实现
type Document struct {
	db     *mongo.Database
	logger gormtool.Logger
}

func NewDocument(db *mongo.Database, logger gormtool.Logger) *Document {
	if logger == nil {
		logger = gormtool.NopLogger{}
	}
	return &Document{db: db, logger: logger}
}

// bestBy $reduce 从 -1 开始按严格大于折叠，等值时保留先出现（sql_id 较小）的文章
func bestBy(field string) bson.D {
	return bson.D{{Key: "$reduce", Value: bson.D{
		{Key: "input", Value: "$posts"},
		{Key: "initialValue", Value: bson.D{{Key: field, Value: -1}}},
		{Key: "in", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$gt", Value: bson.A{"$$this." + field, "$$value." + field}}},
			"$$this",
			"$$value",
		}}}},
	}}}
}

func sizeOf(field string) bson.D {
	return bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{field, bson.A{}}}}}}
}

// Pipeline 返回窗口对应的聚合阶段
func Pipeline(w Window) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "created_at", Value: bson.D{
			{Key: "$gte", Value: w.Start},
			{Key: "$lte", Value: w.End},
		}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "sql_id", Value: 1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "id", Value: "$sql_id"},
			{Key: "title", Value: 1},
			{Key: "tags", Value: 1},
			{Key: "user", Value: 1},
			{Key: "views", Value: 1},
			{Key: "like_count", Value: sizeOf("$likes")},
			{Key: "comment_count", Value: sizeOf("$comments")},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: documents.UsersCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "user", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$user", 0}}}},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "author", Value: bson.D{
				{Key: "id", Value: "$user.sql_id"},
				{Key: "name", Value: "$user.name"},
			}},
		}}},
		{{Key: "$unset", Value: "user"}},
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tags"},
			{Key: "posts", Value: bson.D{{Key: "$push", Value: "$$ROOT"}}},
		}}},
		{{Key: "$unset", Value: "posts.tags"}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "best_view", Value: bestBy("views")},
			{Key: "best_like", Value: bestBy("like_count")},
			{Key: "best_comment", Value: bestBy("comment_count")},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func (d *Document) Aggregate(ctx context.Context, w Window) (Result, error) {
	w = w.UTC()
	start := time.Now()
	result, err := d.aggregate(ctx, w)

	fields := map[string]interface{}{
		"operation": "aggregate_document",
		"duration":  time.Since(start).String(),
		"tags":      len(result),
	}
	if err != nil {
		fields["error"] = err.Error()
		d.logger.Error(ctx, "操作失败", fields)
	} else {
		d.logger.Info(ctx, "操作成功", fields)
	}
	return result, err
}

func (d *Document) aggregate(ctx context.Context, w Window) (Result, error) {
	cursor, err := d.db.Collection(documents.PostsCollection).Aggregate(ctx, Pipeline(w))
	if err != nil {
		return nil, fmt.Errorf("aggregate posts: %w", err)
	}
	defer cursor.Close(ctx)

	result := Result{}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode aggregate: %w", err)
	}
	return result, nil
}
