// Package documents defines the denormalized MongoDB shape of the dataset. Documents are
// validated when constructed; the store never sees an unchecked record.
package documents

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	UsersCollection = "users"
	PostsCollection = "posts"

	MaxUserNameLength = 100
	MaxTitleLength    = 200
	MaxTagLength      = 50
)

var ErrInvalidDocument = errors.New("invalid document")

// User carries sql_id, the only link back to the relational users.id.
type User struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	SQLID     int64              `bson:"sql_id" json:"sql_id"`
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type Comment struct {
	User      primitive.ObjectID   `bson:"user" json:"user"`
	Body      string               `bson:"body" json:"body"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
}

type Post struct {
	ID        primitive.ObjectID   `bson:"_id" json:"id"`
	SQLID     int64                `bson:"sql_id" json:"sql_id"`
	User      primitive.ObjectID   `bson:"user" json:"user"`
	Title     string               `bson:"title" json:"title"`
	Body      string               `bson:"body" json:"body"`
	Views     int64                `bson:"views" json:"views"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments  []Comment            `bson:"comments" json:"comments"`
	Tags      []string             `bson:"tags" json:"tags"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// NewUser assigns a fresh ObjectID.
func NewUser(sqlID int64, name string, createdAt time.Time) (User, error) {
	if sqlID < 1 {
		return User{}, invalid("user sql_id %d must be >= 1", sqlID)
	}
	if name == "" {
		return User{}, invalid("user %d has no name", sqlID)
	}
	if utf8.RuneCountInString(name) > MaxUserNameLength {
		return User{}, invalid("user %d name longer than %d", sqlID, MaxUserNameLength)
	}
	return User{
		ID:        primitive.NewObjectID(),
		SQLID:     sqlID,
		Name:      name,
		CreatedAt: createdAt.UTC(),
	}, nil
}

func NewComment(user primitive.ObjectID, body string, likes []primitive.ObjectID, createdAt time.Time) (Comment, error) {
	if user.IsZero() {
		return Comment{}, invalid("comment without author")
	}
	if body == "" {
		return Comment{}, invalid("comment without body")
	}
	if likes == nil {
		likes = []primitive.ObjectID{}
	}
	return Comment{User: user, Body: body, Likes: likes, CreatedAt: createdAt.UTC()}, nil
}

// PostInput is the relational side of a post after id remapping.
type PostInput struct {
	SQLID     int64
	User      primitive.ObjectID
	Title     string
	Body      string
	Views     int64
	Likes     []primitive.ObjectID
	Comments  []Comment
	Tags      []string
	CreatedAt time.Time
}

// NewPost validates in and assigns a fresh ObjectID. Nil slices become empty arrays so that
// $size never sees a missing field.
func NewPost(in PostInput) (Post, error) {
	switch {
	case in.SQLID < 1:
		return Post{}, invalid("post sql_id %d must be >= 1", in.SQLID)
	case in.User.IsZero():
		return Post{}, invalid("post %d without author", in.SQLID)
	case in.Title == "":
		return Post{}, invalid("post %d without title", in.SQLID)
	case utf8.RuneCountInString(in.Title) > MaxTitleLength:
		return Post{}, invalid("post %d title longer than %d", in.SQLID, MaxTitleLength)
	case in.Body == "":
		return Post{}, invalid("post %d without body", in.SQLID)
	case in.Views < 0:
		return Post{}, invalid("post %d has negative views", in.SQLID)
	}

	seen := make(map[string]bool, len(in.Tags))
	for _, tag := range in.Tags {
		if tag == "" || utf8.RuneCountInString(tag) > MaxTagLength {
			return Post{}, invalid("post %d has tag %q outside 1..%d chars", in.SQLID, tag, MaxTagLength)
		}
		if seen[tag] {
			return Post{}, invalid("post %d has duplicate tag %q", in.SQLID, tag)
		}
		seen[tag] = true
	}

	p := Post{
		ID:        primitive.NewObjectID(),
		SQLID:     in.SQLID,
		User:      in.User,
		Title:     in.Title,
		Body:      in.Body,
		Views:     in.Views,
		Likes:     in.Likes,
		Comments:  in.Comments,
		Tags:      in.Tags,
		CreatedAt: in.CreatedAt.UTC(),
	}
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}
