// Package validator checks that two aggregate results agree.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studieren/dualstore/aggregate"
)

// Mismatch is the first divergence found between two results.
type Mismatch struct {
	Tag    string      `json:"tag"`
	Metric string      `json:"metric"`
	Field  string      `json:"field,omitempty"`
	Left   interface{} `json:"left"`
	Right  interface{} `json:"right"`
}

func (m *Mismatch) Error() string {
	if m.Field == "" {
		return fmt.Sprintf("mismatch at tag %q %s: %v != %v", m.Tag, m.Metric, m.Left, m.Right)
	}
	return fmt.Sprintf("mismatch at tag %q %s.%s: %v != %v", m.Tag, m.Metric, m.Field, m.Left, m.Right)
}

type Options struct {
	// ComparePosts 同时逐条比较每个标签下的文章列表
	ComparePosts bool
}

type field struct {
	name  string
	value func(aggregate.PostSummary) interface{}
}

var summaryFields = []field{
	{"id", func(p aggregate.PostSummary) interface{} { return p.ID }},
	{"title", func(p aggregate.PostSummary) interface{} { return p.Title }},
	{"views", func(p aggregate.PostSummary) interface{} { return p.Views }},
	{"author.id", func(p aggregate.PostSummary) interface{} { return p.Author.ID }},
	{"author.name", func(p aggregate.PostSummary) interface{} { return p.Author.Name }},
	{"like_count", func(p aggregate.PostSummary) interface{} { return p.LikeCount }},
	{"comment_count", func(p aggregate.PostSummary) interface{} { return p.CommentCount }},
}

const missing = "<missing>"

// Compare walks both results in lockstep and returns a *Mismatch for the first divergence,
// or nil when they agree.
func Compare(left, right aggregate.Result, opts Options) error {
	for i := 0; i < len(left) || i < len(right); i++ {
		if i >= len(left) {
			return &Mismatch{Tag: right[i].Tag, Metric: "tag", Left: missing, Right: right[i].Tag}
		}
		if i >= len(right) {
			return &Mismatch{Tag: left[i].Tag, Metric: "tag", Left: left[i].Tag, Right: missing}
		}

		l, r := left[i], right[i]
		if l.Tag != r.Tag {
			return &Mismatch{Tag: l.Tag, Metric: "tag", Left: l.Tag, Right: r.Tag}
		}

		if err := compareSummary(l.Tag, "best_view", l.BestView, r.BestView); err != nil {
			return err
		}
		if err := compareSummary(l.Tag, "best_like", l.BestLike, r.BestLike); err != nil {
			return err
		}
		if err := compareSummary(l.Tag, "best_comment", l.BestComment, r.BestComment); err != nil {
			return err
		}

		if opts.ComparePosts {
			if err := comparePosts(l.Tag, l.Posts, r.Posts); err != nil {
				return err
			}
		}
	}
	return nil
}

func compareSummary(tag, metric string, l, r aggregate.PostSummary) error {
	for _, f := range summaryFields {
		if lv, rv := f.value(l), f.value(r); lv != rv {
			return &Mismatch{Tag: tag, Metric: metric, Field: f.name, Left: lv, Right: rv}
		}
	}
	return nil
}

func comparePosts(tag string, l, r []aggregate.PostSummary) error {
	for i := 0; i < len(l) || i < len(r); i++ {
		metric := fmt.Sprintf("posts[%d]", i)
		if i >= len(l) {
			return &Mismatch{Tag: tag, Metric: metric, Field: "id", Left: missing, Right: r[i].ID}
		}
		if i >= len(r) {
			return &Mismatch{Tag: tag, Metric: metric, Field: "id", Left: l[i].ID, Right: missing}
		}
		if err := compareSummary(tag, metric, l[i], r[i]); err != nil {
			return err
		}
	}
	return nil
}

// Report 一次比较的可序列化摘要
type Report struct {
	Window       aggregate.Window `json:"window"`
	Tags         int              `json:"tags"`
	Equal        bool             `json:"equal"`
	Mismatch     *Mismatch        `json:"mismatch"`
	RelationalMS int64            `json:"relational_ms"`
	DocumentMS   int64            `json:"document_ms"`
}

// Run 依次执行两个引擎并比较结果。结果不一致不算错误，记录在 Report.Mismatch 中。
func Run(ctx context.Context, relational, document aggregate.Engine, w aggregate.Window, opts Options) (Report, error) {
	report := Report{Window: w}

	start := time.Now()
	left, err := relational.Aggregate(ctx, w)
	if err != nil {
		return report, fmt.Errorf("relational aggregate: %w", err)
	}
	report.RelationalMS = time.Since(start).Milliseconds()

	start = time.Now()
	right, err := document.Aggregate(ctx, w)
	if err != nil {
		return report, fmt.Errorf("document aggregate: %w", err)
	}
	report.DocumentMS = time.Since(start).Milliseconds()

	report.Tags = len(left)
	if err := Compare(left, right, opts); err != nil {
		var mismatch *Mismatch
		if !errors.As(err, &mismatch) {
			return report, err
		}
		report.Mismatch = mismatch
		return report, nil
	}
	report.Equal = true
	return report, nil
}
