package dbtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studieren/dualstore/models"
)

// Builder inserts hand-made rows for scenario tests.
type Builder struct {
	t  testing.TB
	db *gorm.DB
	// At is used as created_at for rows that do not take an explicit time.
	At time.Time
}

func NewBuilder(t testing.TB, db *gorm.DB) *Builder {
	return &Builder{t: t, db: db, At: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (b *Builder) create(row interface{}) {
	b.t.Helper()
	require.NoError(b.t, b.db.Omit(clause.Associations).Create(row).Error)
}

func (b *Builder) User(name string) models.User {
	b.t.Helper()
	u := models.User{Base: models.Base{CreatedAt: b.At}, Name: name}
	b.create(&u)
	return u
}

func (b *Builder) Tag(name string) models.Tag {
	b.t.Helper()
	tag := models.Tag{Base: models.Base{CreatedAt: b.At}, Name: name}
	b.create(&tag)
	return tag
}

// Post creates a post and links it to tags in the given order.
func (b *Builder) Post(author models.User, title string, views int64, at time.Time, tags ...models.Tag) models.Post {
	b.t.Helper()
	p := models.Post{
		Base:   models.Base{CreatedAt: at},
		UserID: author.ID,
		Title:  title,
		Body:   title + " body",
		Views:  views,
	}
	b.create(&p)
	for _, tag := range tags {
		b.create(&models.PostTag{Base: models.Base{CreatedAt: at}, PostID: p.ID, TagID: tag.ID})
	}
	return p
}

func (b *Builder) Like(user models.User, post models.Post) {
	b.t.Helper()
	b.create(&models.PostLike{Base: models.Base{CreatedAt: post.CreatedAt}, UserID: user.ID, PostID: post.ID})
}

func (b *Builder) Comment(author models.User, post models.Post, body string) models.Comment {
	b.t.Helper()
	c := models.Comment{Base: models.Base{CreatedAt: post.CreatedAt}, PostID: post.ID, UserID: author.ID, Body: body}
	b.create(&c)
	return c
}

func (b *Builder) CommentLike(user models.User, comment models.Comment) {
	b.t.Helper()
	b.create(&models.CommentLike{Base: models.Base{CreatedAt: comment.CreatedAt}, UserID: user.ID, CommentID: comment.ID})
}
