// seeder\seeder.go
package seeder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/models"
)

// 分页与批量大小
const (
	userBatchSize        = 100
	postTagPageSize      = 50
	postLikePageSize     = 20
	commentPageSize      = 10
	commentLikePageSize  = 1000
	postWindowDays       = 30
	postWindows          = 3
	maxCommentsPerPost   = 30
	commentLikeOneInN    = 10
	minTagsPerPost       = 2
	maxTagsPerPost       = 5
	minPostsPerUser      = 3
	minViews, maxViews   = 10, 1000
	defaultInsertBatches = gormtool.DefaultBatchSize
)

// Clock 可注入的时钟
type Clock func() time.Time

type Option func(*Seeder)

// WithClock 替换当前时间来源，测试用
func WithClock(c Clock) Option {
	return func(s *Seeder) { s.now = c }
}

// Seeder 生成引用一致的随机关系数据
type Seeder struct {
	tool  *gormtool.Tool
	faker *gofakeit.Faker
	now   Clock
}

// New 创建生成器，seed 为 0 时使用随机种子
func New(tool *gormtool.Tool, seed int64, opts ...Option) *Seeder {
	s := &Seeder{
		tool:  tool,
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report 各表本次写入的行数
type Report struct {
	Tags         int           `json:"tags"`
	Users        int           `json:"users"`
	Posts        int           `json:"posts"`
	PostTags     int           `json:"post_tags"`
	PostLikes    int           `json:"post_likes"`
	Comments     int           `json:"comments"`
	CommentLikes int           `json:"comment_likes"`
	Duration     time.Duration `json:"duration"`
}

// Counts 以 map 形式输出，用于日志和事件
func (r Report) Counts() map[string]int {
	return map[string]int{
		"tags":          r.Tags,
		"users":         r.Users,
		"posts":         r.Posts,
		"post_tags":     r.PostTags,
		"post_likes":    r.PostLikes,
		"comments":      r.Comments,
		"comment_likes": r.CommentLikes,
	}
}

// clockNow 统一为 UTC 秒精度，两个存储才能保存完全相同的时间
func (s *Seeder) clockNow() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// between 在 [from, to] 内取随机时刻，秒精度
func (s *Seeder) between(from, to time.Time) time.Time {
	from = from.UTC()
	to = to.UTC()
	if !to.After(from) {
		return from.Truncate(time.Second)
	}
	t := s.faker.DateRange(from, to).UTC().Truncate(time.Second)
	if t.Before(from) {
		// from 本身不是整秒时，截断可能落到 from 之前
		return from
	}
	return t
}

// sample 不放回抽样 n 个
func (s *Seeder) sample(ids []int64, n int) []int64 {
	if n > len(ids) {
		n = len(ids)
	}
	pool := make([]int64, len(ids))
	copy(pool, ids)
	for i := 0; i < n; i++ {
		j := i + s.faker.Rand.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

func (s *Seeder) ids(ctx context.Context, model interface{}) ([]int64, error) {
	var ids []int64
	err := s.tool.DB.WithContext(ctx).Model(model).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// GenerateTags 逐条插入固定标签，唯一约束冲突直接跳过，可重复执行
func (s *Seeder) GenerateTags(ctx context.Context) (int, error) {
	start := time.Now()
	created, skipped := 0, 0

	for _, name := range TagNames {
		err := s.tool.DB.WithContext(ctx).Create(&models.Tag{Name: name}).Error
		if gormtool.IsDuplicateKey(err) {
			skipped++
			continue
		}
		if err != nil {
			s.tool.LogOperation(ctx, "generate_tags", &models.Tag{}, time.Since(start), err, map[string]interface{}{"tag": name})
			return created, fmt.Errorf("create tag %q: %w", name, err)
		}
		created++
	}

	s.tool.LogOperation(ctx, "generate_tags", &models.Tag{}, time.Since(start), nil, map[string]interface{}{
		"created": created,
		"skipped": skipped,
	})
	return created, nil
}

// GenerateUsers 生成恰好 n 个用户，每批 100 条
func (s *Seeder) GenerateUsers(ctx context.Context, n int) (int, error) {
	start := time.Now()
	created := 0

	for idx := 0; idx < n; idx += userBatchSize {
		size := min(userBatchSize, n-idx)
		users := make([]models.User, 0, size)
		for i := 0; i < size; i++ {
			users = append(users, models.User{Name: zhTWName(s.faker)})
		}
		if err := gormtool.CreateInBatches(ctx, s.tool.DB, users, userBatchSize); err != nil {
			s.tool.LogOperation(ctx, "generate_users", &models.User{}, time.Since(start), err, nil)
			return created, fmt.Errorf("create users: %w", err)
		}
		created += size
		s.tool.Logger.Debug(ctx, "users created", map[string]interface{}{"total": created})
	}

	s.tool.LogOperation(ctx, "generate_users", &models.User{}, time.Since(start), nil, map[string]interface{}{"created": created})
	return created, nil
}

// GeneratePosts 在截至 now 的三个连续 30 天窗口内为每个用户生成 3..maxPerUser 篇文章。
// 每个窗口内按创建时间排序后插入，使主键顺序大致对应时间顺序。
func (s *Seeder) GeneratePosts(ctx context.Context, maxPerUser int) (int, error) {
	start := time.Now()
	if maxPerUser < minPostsPerUser {
		return 0, fmt.Errorf("max posts per user must be at least %d, got %d", minPostsPerUser, maxPerUser)
	}

	userIDs, err := s.ids(ctx, &models.User{})
	if err != nil {
		return 0, err
	}

	now := s.clockNow()
	created := 0
	for idx := postWindows; idx > 0; idx-- {
		from := now.AddDate(0, 0, -postWindowDays*idx)
		to := now.AddDate(0, 0, -postWindowDays*(idx-1))

		var posts []models.Post
		for _, uid := range userIDs {
			for i, n := 0, s.faker.Number(minPostsPerUser, maxPerUser); i < n; i++ {
				posts = append(posts, models.Post{
					Base:   models.Base{CreatedAt: s.between(from, to)},
					UserID: uid,
					Title:  s.faker.Sentence(6),
					Body:   s.faker.Paragraph(1, 4, 12, " "),
					Views:  int64(s.faker.Number(minViews, maxViews)),
				})
			}
		}
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		})

		err := s.tool.WithTransaction(ctx, func(tx *gorm.DB) error {
			return gormtool.CreateInBatches(ctx, tx, posts, defaultInsertBatches)
		})
		if err != nil {
			s.tool.LogOperation(ctx, "generate_posts", &models.Post{}, time.Since(start), err, nil)
			return created, fmt.Errorf("create posts: %w", err)
		}
		created += len(posts)
		s.tool.Logger.Debug(ctx, "posts created", map[string]interface{}{
			"count": len(posts),
			"from":  from.Format(time.RFC3339),
			"to":    to.Format(time.RFC3339),
		})
	}

	s.tool.LogOperation(ctx, "generate_posts", &models.Post{}, time.Since(start), nil, map[string]interface{}{"created": created})
	return created, nil
}

// GeneratePostTags 每篇文章 2..5 个不重复标签
func (s *Seeder) GeneratePostTags(ctx context.Context) (int, error) {
	start := time.Now()
	tagIDs, err := s.ids(ctx, &models.Tag{})
	if err != nil {
		return 0, err
	}

	created := 0
	query := s.tool.DB.Model(&models.Post{}).Select("id", "created_at")
	err = gormtool.EachPage(ctx, query, postTagPageSize, func(posts []models.Post) error {
		var rows []models.PostTag
		for _, p := range posts {
			n := s.faker.Number(minTagsPerPost, maxTagsPerPost)
			for _, tagID := range s.sample(tagIDs, n) {
				rows = append(rows, models.PostTag{
					Base:   models.Base{CreatedAt: p.CreatedAt},
					PostID: p.ID,
					TagID:  tagID,
				})
			}
		}
		if err := insertPage(ctx, s.tool, rows); err != nil {
			return err
		}
		created += len(rows)
		return nil
	})

	s.tool.LogOperation(ctx, "generate_post_tags", &models.PostTag{}, time.Since(start), err, map[string]interface{}{"created": created})
	return created, err
}

// GeneratePostLikes 点赞数上限为 min(views, 用户数)，浏览量即点赞上限
func (s *Seeder) GeneratePostLikes(ctx context.Context) (int, error) {
	start := time.Now()
	userIDs, err := s.ids(ctx, &models.User{})
	if err != nil {
		return 0, err
	}

	now := s.clockNow()
	created := 0
	query := s.tool.DB.Model(&models.Post{}).Select("id", "views", "created_at")
	err = gormtool.EachPage(ctx, query, postLikePageSize, func(posts []models.Post) error {
		var rows []models.PostLike
		for _, p := range posts {
			maxCnt := min(int(p.Views), len(userIDs))
			for _, uid := range s.sample(userIDs, s.faker.Number(0, maxCnt)) {
				rows = append(rows, models.PostLike{
					Base:   models.Base{CreatedAt: s.between(p.CreatedAt, now)},
					UserID: uid,
					PostID: p.ID,
				})
			}
		}
		if err := insertPage(ctx, s.tool, rows); err != nil {
			return err
		}
		created += len(rows)
		return nil
	})

	s.tool.LogOperation(ctx, "generate_post_likes", &models.PostLike{}, time.Since(start), err, map[string]interface{}{"created": created})
	return created, err
}

// GenerateComments 每篇文章 0..min(30, 用户数) 条评论，作者可重复
func (s *Seeder) GenerateComments(ctx context.Context) (int, error) {
	start := time.Now()
	userIDs, err := s.ids(ctx, &models.User{})
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	now := s.clockNow()
	created := 0
	query := s.tool.DB.Model(&models.Post{}).Select("id", "created_at")
	err = gormtool.EachPage(ctx, query, commentPageSize, func(posts []models.Post) error {
		var rows []models.Comment
		for _, p := range posts {
			n := s.faker.Number(0, min(maxCommentsPerPost, len(userIDs)))
			for i := 0; i < n; i++ {
				rows = append(rows, models.Comment{
					Base:   models.Base{CreatedAt: s.between(p.CreatedAt, now)},
					PostID: p.ID,
					UserID: userIDs[s.faker.Rand.Intn(len(userIDs))],
					Body:   s.faker.Sentence(8),
				})
			}
		}
		if err := insertPage(ctx, s.tool, rows); err != nil {
			return err
		}
		created += len(rows)
		return nil
	})

	s.tool.LogOperation(ctx, "generate_comments", &models.Comment{}, time.Since(start), err, map[string]interface{}{"created": created})
	return created, err
}

// GenerateCommentLikes 只有 1/10 的评论会被点赞，点赞人数 1..用户数
func (s *Seeder) GenerateCommentLikes(ctx context.Context) (int, error) {
	start := time.Now()
	userIDs, err := s.ids(ctx, &models.User{})
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	now := s.clockNow()
	created := 0
	query := s.tool.DB.Model(&models.Comment{}).Select("id", "created_at")
	err = gormtool.EachPage(ctx, query, commentLikePageSize, func(comments []models.Comment) error {
		var rows []models.CommentLike
		for _, c := range comments {
			if s.faker.Number(1, commentLikeOneInN) != 1 {
				continue
			}
			for _, uid := range s.sample(userIDs, s.faker.Number(1, len(userIDs))) {
				rows = append(rows, models.CommentLike{
					Base:      models.Base{CreatedAt: s.between(c.CreatedAt, now)},
					UserID:    uid,
					CommentID: c.ID,
				})
			}
		}
		if err := insertPage(ctx, s.tool, rows); err != nil {
			return err
		}
		created += len(rows)
		return nil
	})

	s.tool.LogOperation(ctx, "generate_comment_likes", &models.CommentLike{}, time.Since(start), err, map[string]interface{}{"created": created})
	return created, err
}

// insertPage 一页数据在一个事务内提交
func insertPage[T any](ctx context.Context, tool *gormtool.Tool, rows []T) error {
	return tool.WithTransaction(ctx, func(tx *gorm.DB) error {
		return gormtool.CreateInBatches(ctx, tx, rows, defaultInsertBatches)
	})
}

// BuildAndSeed 重建表结构并按依赖顺序生成全部数据
func (s *Seeder) BuildAndSeed(ctx context.Context, users, maxPostsPerUser int) (Report, error) {
	start := time.Now()
	var report Report

	if err := s.tool.Drop(ctx, models.All()...); err != nil {
		return report, fmt.Errorf("drop schema: %w", err)
	}
	if err := s.tool.Migrate(ctx, models.All()...); err != nil {
		return report, fmt.Errorf("migrate schema: %w", err)
	}

	steps := []struct {
		name string
		dst  *int
		run  func() (int, error)
	}{
		{"tags", &report.Tags, func() (int, error) { return s.GenerateTags(ctx) }},
		{"users", &report.Users, func() (int, error) { return s.GenerateUsers(ctx, users) }},
		{"posts", &report.Posts, func() (int, error) { return s.GeneratePosts(ctx, maxPostsPerUser) }},
		{"post_tags", &report.PostTags, func() (int, error) { return s.GeneratePostTags(ctx) }},
		{"post_likes", &report.PostLikes, func() (int, error) { return s.GeneratePostLikes(ctx) }},
		{"comments", &report.Comments, func() (int, error) { return s.GenerateComments(ctx) }},
		{"comment_likes", &report.CommentLikes, func() (int, error) { return s.GenerateCommentLikes(ctx) }},
	}
	for _, step := range steps {
		n, err := step.run()
		*step.dst = n
		if err != nil {
			return report, fmt.Errorf("seed %s: %w", step.name, err)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}
