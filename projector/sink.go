// projector\sink.go
package projector

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/studieren/dualstore/documents"
)

// Sink 文档的写入目标
type Sink interface {
	Reset(ctx context.Context) error
	EnsureIndexes(ctx context.Context) error
	InsertUsers(ctx context.Context, users []documents.User) error
	InsertPosts(ctx context.Context, posts []documents.Post) error
}

// MongoSink 写入 MongoDB 的 users / posts 集合
type MongoSink struct {
	db *mongo.Database
}

func NewMongoSink(db *mongo.Database) *MongoSink {
	return &MongoSink{db: db}
}

// Reset 删除两个集合，投影总是全量重建
func (s *MongoSink) Reset(ctx context.Context) error {
	for _, name := range []string{documents.PostsCollection, documents.UsersCollection} {
		if err := s.db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

// EnsureIndexes sql_id 在两个集合中都唯一，posts.tags 建普通索引
func (s *MongoSink) EnsureIndexes(ctx context.Context) error {
	sqlID := mongo.IndexModel{
		Keys:    bson.D{{Key: "sql_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("sql_id_unique"),
	}

	if _, err := s.db.Collection(documents.UsersCollection).Indexes().CreateOne(ctx, sqlID); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err := s.db.Collection(documents.PostsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		sqlID,
		{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags")},
	})
	if err != nil {
		return fmt.Errorf("create posts indexes: %w", err)
	}
	return nil
}

func (s *MongoSink) InsertUsers(ctx context.Context, users []documents.User) error {
	docs := make([]interface{}, 0, len(users))
	for _, u := range users {
		docs = append(docs, u)
	}
	return s.insert(ctx, documents.UsersCollection, docs)
}

func (s *MongoSink) InsertPosts(ctx context.Context, posts []documents.Post) error {
	docs := make([]interface{}, 0, len(posts))
	for _, p := range posts {
		docs = append(docs, p)
	}
	return s.insert(ctx, documents.PostsCollection, docs)
}

func (s *MongoSink) insert(ctx context.Context, collection string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.db.Collection(collection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("insert %d into %s: %w", len(docs), collection, err)
	}
	return nil
}
