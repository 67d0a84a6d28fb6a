package aggregate_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studieren/dualstore/aggregate"
	"github.com/studieren/dualstore/dbtest"
	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/models"
	"github.com/studieren/dualstore/projector"
	"github.com/studieren/dualstore/seeder"
)

var june = aggregate.Window{
	Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
}

// scifiScenario 100 个用户，窗口内只有一篇 科幻 文章浏览量最高
func scifiScenario(t *testing.T, db *gorm.DB) aggregate.PostSummary {
	t.Helper()
	ctx := context.Background()

	s := seeder.New(dbtest.Tool(db), 100)
	_, err := s.GenerateTags(ctx)
	require.NoError(t, err)
	_, err = s.GenerateUsers(ctx, 100)
	require.NoError(t, err)

	var scifi, travel models.Tag
	require.NoError(t, db.Where("name = ?", "科幻").First(&scifi).Error)
	require.NoError(t, db.Where("name = ?", "旅遊").First(&travel).Error)
	var users []models.User
	require.NoError(t, db.Order("id").Find(&users).Error)
	require.Len(t, users, 100)

	b := dbtest.NewBuilder(t, db)
	at := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	var want aggregate.PostSummary
	for i := 0; i < 10; i++ {
		views := int64(100 + 10*i)
		if i == 6 {
			views = 5000
		}
		p := b.Post(users[i], fmt.Sprintf("文章 %d", i), views, at.Add(time.Duration(i)*time.Hour), scifi, travel)
		for _, u := range users[20 : 20+i] {
			b.Like(u, p)
		}
		comments := 0
		if i%3 == 0 {
			b.Comment(users[50], p, "讚")
			comments = 1
		}
		if i == 6 {
			want = aggregate.PostSummary{
				ID:           p.ID,
				Title:        p.Title,
				Views:        5000,
				Author:       aggregate.Author{ID: users[i].ID, Name: users[i].Name},
				LikeCount:    int64(i),
				CommentCount: int64(comments),
			}
		}
	}
	// 窗口外更高的浏览量不影响结果
	b.Post(users[99], "五月", 9999, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), scifi)
	return want
}

func bestViewFor(t *testing.T, r aggregate.Result, tag string) aggregate.PostSummary {
	t.Helper()
	for _, agg := range r {
		if agg.Tag == tag {
			return agg.BestView
		}
	}
	t.Fatalf("tag %q missing from result", tag)
	return aggregate.PostSummary{}
}

func TestScifiBestViewRelational(t *testing.T) {
	db := dbtest.Open(t)
	want := scifiScenario(t, db)

	result, err := aggregate.NewRelational(dbtest.Tool(db)).Aggregate(context.Background(), june)
	require.NoError(t, err)
	require.Len(t, result, 2, "only tags with posts in the window")
	assertWithinWindow(t, db, june, result)
	assert.Equal(t, want, bestViewFor(t, result, "科幻"))
}

func TestScifiBestViewDocument(t *testing.T) {
	mdb := liveMongo(t)
	db := dbtest.Open(t)
	want := scifiScenario(t, db)
	ctx := context.Background()

	_, err := projector.New(dbtest.Tool(db), projector.NewMongoSink(mdb)).Run(ctx)
	require.NoError(t, err)

	result, err := aggregate.NewDocument(mdb, gormtool.NopLogger{}).Aggregate(ctx, june)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assertWithinWindow(t, db, june, result)
	assert.Equal(t, want, bestViewFor(t, result, "科幻"))
}
