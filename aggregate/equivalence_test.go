package aggregate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"

	"github.com/studieren/dualstore/aggregate"
	"github.com/studieren/dualstore/dbtest"
	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/models"
	"github.com/studieren/dualstore/projector"
	"github.com/studieren/dualstore/seeder"
	"github.com/studieren/dualstore/validator"
)

// liveMongo 需要真实的 MongoDB：DUALSTORE_TEST_MONGO_URI=mongodb://localhost:27017
func liveMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("DUALSTORE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DUALSTORE_TEST_MONGO_URI not set")
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	mdb := client.Database(fmt.Sprintf("dualstore_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = mdb.Drop(context.Background()) })
	return mdb
}

// assertWithinWindow 结果中的每篇文章的 created_at 都落在窗口内
func assertWithinWindow(t *testing.T, db *gorm.DB, w aggregate.Window, r aggregate.Result) {
	t.Helper()
	for _, agg := range r {
		for _, p := range agg.Posts {
			var post models.Post
			require.NoError(t, db.Select("id", "created_at").First(&post, p.ID).Error)
			assert.True(t, w.Contains(post.CreatedAt), "tag %q post %d at %s outside window", agg.Tag, p.ID, post.CreatedAt)
		}
	}
}

func TestEquivalenceAgainstMongo(t *testing.T) {
	mdb := liveMongo(t)
	ctx := context.Background()

	db := dbtest.Open(t)
	tool := dbtest.Tool(db)
	_, err := seeder.New(tool, 11, seeder.WithClock(func() time.Time {
		return time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	})).BuildAndSeed(ctx, 30, 6)
	require.NoError(t, err)

	_, err = projector.New(tool, projector.NewMongoSink(mdb)).Run(ctx)
	require.NoError(t, err)

	relational := aggregate.NewRelational(tool)
	document := aggregate.NewDocument(mdb, gormtool.NopLogger{})

	windows := [][2]time.Time{
		{time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, bounds := range windows {
		w, err := aggregate.NewWindow(bounds[0], bounds[1])
		require.NoError(t, err)

		left, err := relational.Aggregate(ctx, w)
		require.NoError(t, err)
		right, err := document.Aggregate(ctx, w)
		require.NoError(t, err)

		assert.NoError(t, validator.Compare(left, right, validator.Options{ComparePosts: true}), "window %v", w)
		assertWithinWindow(t, db, w, left)
		assertWithinWindow(t, db, w, right)

		l, err := json.Marshal(left)
		require.NoError(t, err)
		r, err := json.Marshal(right)
		require.NoError(t, err)
		assert.JSONEq(t, string(l), string(r))
	}
}

func TestDocumentBoundaryAndTieAgainstMongo(t *testing.T) {
	mdb := liveMongo(t)
	ctx := context.Background()

	db := dbtest.Open(t)
	b := dbtest.NewBuilder(t, db)
	author := b.User("作者")
	edge, late, tie := b.Tag("邊界"), b.Tag("之後"), b.Tag("平手")

	onStart := b.Post(author, "on start", 2, june.Start, edge)
	onEnd := b.Post(author, "on end", 2, june.End, edge)
	// MongoDB 只保存到毫秒
	b.Post(author, "one millisecond late", 99, june.End.Add(time.Millisecond), late, edge)

	at := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	first := b.Post(author, "first", 100, at, tie)
	second := b.Post(author, "second", 100, at, tie)
	b.Comment(author, first, "一")
	b.Comment(author, second, "二")

	tool := dbtest.Tool(db)
	_, err := projector.New(tool, projector.NewMongoSink(mdb)).Run(ctx)
	require.NoError(t, err)

	right, err := aggregate.NewDocument(mdb, gormtool.NopLogger{}).Aggregate(ctx, june)
	require.NoError(t, err)
	left, err := aggregate.NewRelational(tool).Aggregate(ctx, june)
	require.NoError(t, err)
	assert.NoError(t, validator.Compare(left, right, validator.Options{ComparePosts: true}))
	assertWithinWindow(t, db, june, right)

	require.Len(t, right, 2)
	assert.Equal(t, []string{"平手", "邊界"}, []string{right[0].Tag, right[1].Tag})

	require.Len(t, right[1].Posts, 2)
	assert.Equal(t, onStart.ID, right[1].Posts[0].ID)
	assert.Equal(t, onEnd.ID, right[1].Posts[1].ID)
	assert.Equal(t, onStart.ID, right[1].BestView.ID)

	assert.Equal(t, first.ID, right[0].BestView.ID)
	assert.Equal(t, first.ID, right[0].BestLike.ID)
	assert.Equal(t, first.ID, right[0].BestComment.ID)
	assert.Equal(t, int64(1), right[0].BestComment.CommentCount)
}
