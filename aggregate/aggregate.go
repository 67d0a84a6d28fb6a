// Package aggregate computes, per tag, the top post by views, likes and comments over a
// created_at window. Relational and Document produce the same Result for the same data.
package aggregate

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("invalid window")

// Window is inclusive at both ends.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow normalizes both bounds to UTC.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}.UTC()
	if w.End.Before(w.Start) {
		return Window{}, ErrInvalidWindow
	}
	return w, nil
}

// UTC 关系库按文本比较时间，边界必须与存储一致使用 UTC
func (w Window) UTC() Window {
	return Window{Start: w.Start.UTC(), End: w.End.UTC()}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

type Author struct {
	ID   int64  `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

type PostSummary struct {
	ID           int64  `bson:"id" json:"id"`
	Title        string `bson:"title" json:"title"`
	Views        int64  `bson:"views" json:"views"`
	Author       Author `bson:"author" json:"author"`
	LikeCount    int64  `bson:"like_count" json:"like_count"`
	CommentCount int64  `bson:"comment_count" json:"comment_count"`
}

// TagAggregate posts 按文章 id 升序
type TagAggregate struct {
	Tag         string        `bson:"_id" json:"tag"`
	Posts       []PostSummary `bson:"posts" json:"posts"`
	BestView    PostSummary   `bson:"best_view" json:"best_view"`
	BestLike    PostSummary   `bson:"best_like" json:"best_like"`
	BestComment PostSummary   `bson:"best_comment" json:"best_comment"`
}

// Result is ordered by tag, byte-wise ascending. Tags without qualifying posts are absent.
type Result []TagAggregate

// Engine 统一两种存储的聚合入口
type Engine interface {
	Aggregate(ctx context.Context, w Window) (Result, error)
}

// Metric 比较文章的指标
type Metric struct {
	Name  string
	Value func(PostSummary) int64
}

var (
	ByViews    = Metric{Name: "best_view", Value: func(p PostSummary) int64 { return p.Views }}
	ByLikes    = Metric{Name: "best_like", Value: func(p PostSummary) int64 { return p.LikeCount }}
	ByComments = Metric{Name: "best_comment", Value: func(p PostSummary) int64 { return p.CommentCount }}
)

// Best folds posts in order with strict greater-than from a -1 sentinel; the first post holding
// the maximum wins. Posts must be in ascending id order.
func Best(posts []PostSummary, m Metric) PostSummary {
	var best PostSummary
	top := int64(-1)
	for _, p := range posts {
		if v := m.Value(p); v > top {
			best, top = p, v
		}
	}
	return best
}

func newTagAggregate(tag string, posts []PostSummary) TagAggregate {
	return TagAggregate{
		Tag:         tag,
		Posts:       posts,
		BestView:    Best(posts, ByViews),
		BestLike:    Best(posts, ByLikes),
		BestComment: Best(posts, ByComments),
	}
}
