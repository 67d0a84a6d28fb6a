package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studieren/dualstore/dbtest"
)

type call struct {
	query  string
	params map[string]interface{}
}

type fakeRunner struct {
	calls  []call
	failOn string
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	if f.failOn != "" && strings.Contains(query, f.failOn) {
		return nil, errors.New("neo4j unavailable")
	}
	f.calls = append(f.calls, call{query: query, params: params})
	return &neo4j.EagerResult{}, nil
}

func (f *fakeRunner) rows(t *testing.T, query string) []interface{} {
	t.Helper()
	var out []interface{}
	for _, c := range f.calls {
		if c.query == query {
			out = append(out, c.params["rows"].([]interface{})...)
		}
	}
	return out
}

func TestExport(t *testing.T) {
	db := dbtest.Open(t)
	b := dbtest.NewBuilder(t, db)

	alice, bob, carol := b.User("王小明"), b.User("林美玲"), b.User("陳志豪")
	scifi, travel := b.Tag("科幻"), b.Tag("旅遊")
	at := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	p1 := b.Post(alice, "銀河", 10, at, scifi, travel)
	p2 := b.Post(bob, "星艦", 20, at, scifi)
	b.Post(carol, "無標籤", 30, at)
	b.Like(bob, p1)
	b.Like(carol, p1)
	b.Like(alice, p2)

	runner := &fakeRunner{}
	report, err := NewExporter(dbtest.Tool(db), runner, 2).Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Tags)
	assert.Equal(t, 3, report.Users)
	assert.Equal(t, 3, report.Posts)
	assert.Equal(t, 3, report.Likes)
	assert.Equal(t, 3, report.Tagged)

	for i, stmt := range constraints {
		assert.Equal(t, stmt, runner.calls[i].query)
	}
	assert.Equal(t, []string{"科幻", "旅遊"}, runner.calls[len(constraints)].params["names"])

	users := runner.rows(t, mergeUsers)
	require.Len(t, users, 3)
	assert.Equal(t, row{"sql_id": alice.ID, "name": "王小明"}, users[0])

	posts := runner.rows(t, mergePosts)
	require.Len(t, posts, 3)
	assert.Equal(t, row{
		"sql_id":     p1.ID,
		"user_id":    alice.ID,
		"title":      "銀河",
		"views":      int64(10),
		"created_at": at,
	}, posts[0])

	assert.ElementsMatch(t, []interface{}{
		row{"post_id": p1.ID, "tag": "科幻"},
		row{"post_id": p1.ID, "tag": "旅遊"},
		row{"post_id": p2.ID, "tag": "科幻"},
	}, runner.rows(t, mergeTagged))
	assert.Len(t, runner.rows(t, mergeLikes), 3)
}

func TestExportStopsOnRunnerError(t *testing.T) {
	db := dbtest.Open(t)
	b := dbtest.NewBuilder(t, db)
	b.User("王小明")

	runner := &fakeRunner{failOn: "MERGE (u:User"}
	_, err := NewExporter(dbtest.Tool(db), runner, 0).Export(context.Background())
	assert.ErrorContains(t, err, "merge users")
	for _, c := range runner.calls {
		assert.NotEqual(t, mergePosts, c.query)
	}
}
