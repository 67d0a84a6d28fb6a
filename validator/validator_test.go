package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studieren/dualstore/aggregate"
)

func summary(id, views, likes, comments int64) aggregate.PostSummary {
	return aggregate.PostSummary{
		ID:           id,
		Title:        "post",
		Views:        views,
		Author:       aggregate.Author{ID: 1, Name: "王小明"},
		LikeCount:    likes,
		CommentCount: comments,
	}
}

func sample() aggregate.Result {
	a, b := summary(1, 10, 2, 0), summary(2, 20, 1, 3)
	return aggregate.Result{
		{Tag: "旅遊", Posts: []aggregate.PostSummary{a}, BestView: a, BestLike: a, BestComment: a},
		{Tag: "科幻", Posts: []aggregate.PostSummary{a, b}, BestView: b, BestLike: a, BestComment: b},
	}
}

func asMismatch(t *testing.T, err error) *Mismatch {
	t.Helper()
	var m *Mismatch
	require.True(t, errors.As(err, &m), "want *Mismatch, got %v", err)
	return m
}

func TestCompareEqual(t *testing.T) {
	assert.NoError(t, Compare(sample(), sample(), Options{ComparePosts: true}))
	assert.NoError(t, Compare(aggregate.Result{}, nil, Options{}))
}

func TestCompareTagSequence(t *testing.T) {
	left, right := sample(), sample()
	right = right[:1]

	m := asMismatch(t, Compare(left, right, Options{}))
	assert.Equal(t, "科幻", m.Tag)
	assert.Equal(t, "tag", m.Metric)
	assert.Equal(t, missing, m.Right)

	right = sample()
	right[0].Tag = "攝影"
	m = asMismatch(t, Compare(left, right, Options{}))
	assert.Equal(t, "旅遊", m.Tag)
	assert.Equal(t, "攝影", m.Right)
}

func TestCompareBestFieldByField(t *testing.T) {
	left, right := sample(), sample()
	right[1].BestLike.Author.Name = "林美玲"

	m := asMismatch(t, Compare(left, right, Options{}))
	assert.Equal(t, &Mismatch{
		Tag:    "科幻",
		Metric: "best_like",
		Field:  "author.name",
		Left:   "王小明",
		Right:  "林美玲",
	}, m)
	assert.Contains(t, m.Error(), `"科幻" best_like.author.name`)
}

func TestCompareFirstDivergenceOnly(t *testing.T) {
	left, right := sample(), sample()
	right[0].BestView.Views = 99
	right[1].BestComment.ID = 42

	m := asMismatch(t, Compare(left, right, Options{}))
	assert.Equal(t, "旅遊", m.Tag)
	assert.Equal(t, "views", m.Field)
}

func TestComparePostsOptional(t *testing.T) {
	left, right := sample(), sample()
	right[1].Posts[0].CommentCount = 5

	assert.NoError(t, Compare(left, right, Options{ComparePosts: false}))

	m := asMismatch(t, Compare(left, right, Options{ComparePosts: true}))
	assert.Equal(t, "posts[0]", m.Metric)
	assert.Equal(t, "comment_count", m.Field)

	right = sample()
	right[1].Posts = right[1].Posts[:1]
	m = asMismatch(t, Compare(left, right, Options{ComparePosts: true}))
	assert.Equal(t, "posts[1]", m.Metric)
	assert.Equal(t, int64(2), m.Left)
}

type fixedEngine struct {
	result aggregate.Result
	err    error
}

func (f fixedEngine) Aggregate(context.Context, aggregate.Window) (aggregate.Result, error) {
	return f.result, f.err
}

func TestRun(t *testing.T) {
	w, err := aggregate.NewWindow(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	ctx := context.Background()

	report, err := Run(ctx, fixedEngine{result: sample()}, fixedEngine{result: sample()}, w, Options{ComparePosts: true})
	require.NoError(t, err)
	assert.True(t, report.Equal)
	assert.Nil(t, report.Mismatch)
	assert.Equal(t, 2, report.Tags)

	diverged := sample()
	diverged[1].BestView.ID = 9
	report, err = Run(ctx, fixedEngine{result: sample()}, fixedEngine{result: diverged}, w, Options{})
	require.NoError(t, err)
	assert.False(t, report.Equal)
	require.NotNil(t, report.Mismatch)
	assert.Equal(t, "best_view", report.Mismatch.Metric)

	_, err = Run(ctx, fixedEngine{err: errors.New("boom")}, fixedEngine{}, w, Options{})
	assert.ErrorContains(t, err, "relational aggregate")
}
