// projector\projector.go
package projector

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"

	"github.com/studieren/dualstore/documents"
	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/models"
)

const (
	DefaultUserPageSize = 100
	DefaultPostPageSize = 20
)

// Projector 把关系库的数据反范式化写入文档库。
// 先投影全部用户得到 IDMap，再投影文章；文章的点赞、评论、标签随文章页一起加载。
type Projector struct {
	tool         *gormtool.Tool
	sink         Sink
	userPageSize int
	postPageSize int
}

type Option func(*Projector)

func WithPageSizes(users, posts int) Option {
	return func(p *Projector) {
		if users > 0 {
			p.userPageSize = users
		}
		if posts > 0 {
			p.postPageSize = posts
		}
	}
}

func New(tool *gormtool.Tool, sink Sink, opts ...Option) *Projector {
	p := &Projector{
		tool:         tool,
		sink:         sink,
		userPageSize: DefaultUserPageSize,
		postPageSize: DefaultPostPageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report 本次投影写入的文档和内嵌元素数量
type Report struct {
	Users        int           `json:"users"`
	Posts        int           `json:"posts"`
	Comments     int           `json:"comments"`
	PostLikes    int           `json:"post_likes"`
	CommentLikes int           `json:"comment_likes"`
	Tags         int           `json:"tags"`
	Duration     time.Duration `json:"duration"`
}

func (r Report) Counts() map[string]int {
	return map[string]int{
		"users":         r.Users,
		"posts":         r.Posts,
		"comments":      r.Comments,
		"post_likes":    r.PostLikes,
		"comment_likes": r.CommentLikes,
		"tags":          r.Tags,
	}
}

// Run 清空目标、建索引、投影用户、投影文章
func (p *Projector) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	if err := p.sink.Reset(ctx); err != nil {
		return report, fmt.Errorf("reset sink: %w", err)
	}
	if err := p.sink.EnsureIndexes(ctx); err != nil {
		return report, fmt.Errorf("ensure indexes: %w", err)
	}

	ids, err := p.ProjectUsers(ctx)
	if err != nil {
		return report, err
	}
	report.Users = ids.Len()

	if err := p.ProjectPosts(ctx, ids, &report); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	p.tool.LogOperation(ctx, "project", nil, report.Duration, nil, map[string]interface{}{
		"users": report.Users,
		"posts": report.Posts,
	})
	return report, nil
}

// ProjectUsers 按主键翻页投影全部用户，返回 sql_id 到 ObjectID 的映射
func (p *Projector) ProjectUsers(ctx context.Context) (*documents.IDMap, error) {
	start := time.Now()
	ids := documents.NewIDMap()

	query := p.tool.DB.Model(&models.User{})
	err := gormtool.EachPage(ctx, query, p.userPageSize, func(users []models.User) error {
		docs := make([]documents.User, 0, len(users))
		for _, u := range users {
			doc, err := documents.NewUser(u.ID, u.Name, u.CreatedAt)
			if err != nil {
				return err
			}
			if err := ids.Add(u.ID, doc.ID); err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		if err := p.sink.InsertUsers(ctx, docs); err != nil {
			return err
		}
		p.tool.Logger.Debug(ctx, "users projected", map[string]interface{}{"total": ids.Len()})
		return nil
	})
	if err != nil {
		err = fmt.Errorf("project users: %w", err)
	}

	p.tool.LogOperation(ctx, "project_users", &models.User{}, time.Since(start), err, map[string]interface{}{"projected": ids.Len()})
	return ids, err
}

func orderByID(table string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(table + ".id ASC")
	}
}

// ProjectPosts 按主键翻页投影文章。report 可为 nil。
func (p *Projector) ProjectPosts(ctx context.Context, ids *documents.IDMap, report *Report) error {
	start := time.Now()
	if report == nil {
		report = &Report{}
	}

	query := p.tool.DB.Model(&models.Post{}).
		Preload("Likes", orderByID("post_likes")).
		Preload("Comments", orderByID("post_comments")).
		Preload("Comments.Likes", orderByID("comment_likes"))

	err := gormtool.EachPage(ctx, query, p.postPageSize, func(posts []models.Post) error {
		tags, err := p.tagsOf(ctx, posts)
		if err != nil {
			return err
		}

		docs := make([]documents.Post, 0, len(posts))
		for i := range posts {
			doc, err := buildPost(&posts[i], tags[posts[i].ID], ids)
			if err != nil {
				return err
			}
			docs = append(docs, doc)

			report.Comments += len(doc.Comments)
			report.PostLikes += len(doc.Likes)
			report.Tags += len(doc.Tags)
			for _, c := range doc.Comments {
				report.CommentLikes += len(c.Likes)
			}
		}
		if err := p.sink.InsertPosts(ctx, docs); err != nil {
			return err
		}
		report.Posts += len(docs)
		p.tool.Logger.Debug(ctx, "posts projected", map[string]interface{}{"total": report.Posts})
		return nil
	})
	if err != nil {
		err = fmt.Errorf("project posts: %w", err)
	}

	p.tool.LogOperation(ctx, "project_posts", &models.Post{}, time.Since(start), err, map[string]interface{}{"projected": report.Posts})
	return err
}

// tagsOf 一次联表查询取出本页文章的标签名，按 post_tag 主键顺序
func (p *Projector) tagsOf(ctx context.Context, posts []models.Post) (map[int64][]string, error) {
	postIDs := make([]int64, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
	}

	var rows []struct {
		PostID int64
		Name   string
	}
	err := p.tool.DB.WithContext(ctx).Model(&models.PostTag{}).
		Select("post_tag.post_id, tags.name").
		Joins("JOIN tags ON tags.id = post_tag.tag_id").
		Where("post_tag.post_id IN ?", postIDs).
		Order("post_tag.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}

	tags := make(map[int64][]string, len(posts))
	for _, row := range rows {
		tags[row.PostID] = append(tags[row.PostID], row.Name)
	}
	return tags, nil
}

func buildPost(post *models.Post, tags []string, ids *documents.IDMap) (documents.Post, error) {
	author, err := ids.Resolve(post.UserID, fmt.Sprintf("post %d author", post.ID))
	if err != nil {
		return documents.Post{}, err
	}

	likers := make([]int64, 0, len(post.Likes))
	for _, like := range post.Likes {
		likers = append(likers, like.UserID)
	}
	likes, err := ids.ResolveAll(likers, fmt.Sprintf("post %d likes", post.ID))
	if err != nil {
		return documents.Post{}, err
	}

	comments := make([]documents.Comment, 0, len(post.Comments))
	for _, c := range post.Comments {
		doc, err := buildComment(post.ID, &c, ids)
		if err != nil {
			return documents.Post{}, err
		}
		comments = append(comments, doc)
	}

	return documents.NewPost(documents.PostInput{
		SQLID:     post.ID,
		User:      author,
		Title:     post.Title,
		Body:      post.Body,
		Views:     post.Views,
		Likes:     likes,
		Comments:  comments,
		Tags:      tags,
		CreatedAt: post.CreatedAt,
	})
}

func buildComment(postID int64, c *models.Comment, ids *documents.IDMap) (documents.Comment, error) {
	author, err := ids.Resolve(c.UserID, fmt.Sprintf("post %d comment %d author", postID, c.ID))
	if err != nil {
		return documents.Comment{}, err
	}

	var likes []primitive.ObjectID
	for _, like := range c.Likes {
		id, err := ids.Resolve(like.UserID, fmt.Sprintf("comment %d likes", c.ID))
		if err != nil {
			return documents.Comment{}, err
		}
		likes = append(likes, id)
	}
	return documents.NewComment(author, c.Body, likes, c.CreatedAt)
}
