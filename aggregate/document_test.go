package aggregate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/studieren/dualstore/documents"
)

func stageNames(t *testing.T, w Window) []string {
	t.Helper()
	var names []string
	for _, stage := range Pipeline(w) {
		require.Len(t, stage, 1)
		names = append(names, stage[0].Key)
	}
	return names
}

func TestPipelineStages(t *testing.T) {
	assert.Equal(t, []string{
		"$match", "$sort", "$project", "$lookup", "$addFields", "$addFields",
		"$unset", "$unwind", "$group", "$unset", "$addFields", "$sort",
	}, stageNames(t, june))

	match := Pipeline(june)[0][0].Value.(bson.D)
	bounds := match[0].Value.(bson.D)
	assert.Equal(t, "created_at", match[0].Key)
	assert.Equal(t, bson.E{Key: "$gte", Value: june.Start}, bounds[0])
	assert.Equal(t, bson.E{Key: "$lte", Value: june.End}, bounds[1])
}

func TestBestByFoldsFromSentinel(t *testing.T) {
	reduce := bestBy("views")[0].Value.(bson.D)
	assert.Equal(t, "$posts", reduce[0].Value)
	assert.Equal(t, bson.D{{Key: "views", Value: -1}}, reduce[1].Value)

	cond := reduce[2].Value.(bson.D)[0].Value.(bson.A)
	assert.Equal(t, bson.D{{Key: "$gt", Value: bson.A{"$$this.views", "$$value.views"}}}, cond[0])
}

func TestDocumentAggregateDecodes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decode", func(mt *mtest.T) {
		post := bson.D{
			{Key: "id", Value: int64(7)},
			{Key: "title", Value: "銀河"},
			{Key: "views", Value: int64(300)},
			{Key: "like_count", Value: int32(2)},
			{Key: "comment_count", Value: int32(1)},
			{Key: "author", Value: bson.D{{Key: "id", Value: int64(3)}, {Key: "name", Value: "王小明"}}},
		}
		ns := fmt.Sprintf("%s.%s", mt.DB.Name(), documents.PostsCollection)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "科幻"},
				{Key: "posts", Value: bson.A{post}},
				{Key: "best_view", Value: post},
				{Key: "best_like", Value: post},
				{Key: "best_comment", Value: post},
			}),
		)

		result, err := NewDocument(mt.DB, nil).Aggregate(context.Background(), june)
		require.NoError(mt, err)

		want := PostSummary{
			ID:           7,
			Title:        "銀河",
			Views:        300,
			Author:       Author{ID: 3, Name: "王小明"},
			LikeCount:    2,
			CommentCount: 1,
		}
		require.Len(mt, result, 1)
		assert.Equal(mt, TagAggregate{
			Tag:         "科幻",
			Posts:       []PostSummary{want},
			BestView:    want,
			BestLike:    want,
			BestComment: want,
		}, result[0])

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "aggregate", started.CommandName)
	})

	mt.Run("empty", func(mt *mtest.T) {
		ns := fmt.Sprintf("%s.%s", mt.DB.Name(), documents.PostsCollection)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		result, err := NewDocument(mt.DB, nil).Aggregate(context.Background(), june)
		require.NoError(mt, err)
		assert.NotNil(mt, result)
		assert.Empty(mt, result)
	})

	mt.Run("command error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad stage",
			Name:    "BadValue",
		}))

		_, err := NewDocument(mt.DB, nil).Aggregate(context.Background(), june)
		assert.ErrorContains(mt, err, "aggregate posts")
	})
}
