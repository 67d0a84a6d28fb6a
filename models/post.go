package models

type Post struct {
	Base
	UserID int64  `gorm:"column:user_id;not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Title  string `gorm:"column:title;size:255" json:"title"`
	Body   string `gorm:"column:body;type:text;not null" json:"body"`
	Views  int64  `gorm:"column:views;default:0" json:"views"`

	Likes    []PostLike `gorm:"foreignKey:PostID" json:"likes,omitempty"`
	Comments []Comment  `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

func (Post) TableName() string { return "posts" }

// PostTag 多对多中间表，单独建模以便生成器写入 created_at
type PostTag struct {
	Base
	PostID int64 `gorm:"column:post_id;not null;uniqueIndex:idx_post_tag_pair" json:"post_id"`
	TagID  int64 `gorm:"column:tag_id;not null;uniqueIndex:idx_post_tag_pair" json:"tag_id"`
	Post   Post  `gorm:"foreignKey:PostID" json:"-"`
	Tag    Tag   `gorm:"foreignKey:TagID" json:"-"`
}

func (PostTag) TableName() string { return "post_tag" }

type PostLike struct {
	Base
	UserID int64 `gorm:"column:user_id;not null;uniqueIndex:idx_post_likes_pair" json:"user_id"`
	PostID int64 `gorm:"column:post_id;not null;uniqueIndex:idx_post_likes_pair;index" json:"post_id"`
	User   User  `gorm:"foreignKey:UserID" json:"-"`
	Post   Post  `gorm:"foreignKey:PostID" json:"-"`
}

func (PostLike) TableName() string { return "post_likes" }

type Comment struct {
	Base
	PostID int64  `gorm:"column:post_id;not null;index" json:"post_id"`
	UserID int64  `gorm:"column:user_id;not null" json:"user_id"`
	Body   string `gorm:"column:body;type:text;not null" json:"body"`
	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Post   Post   `gorm:"foreignKey:PostID" json:"-"`

	Likes []CommentLike `gorm:"foreignKey:CommentID" json:"likes,omitempty"`
}

func (Comment) TableName() string { return "post_comments" }

type CommentLike struct {
	Base
	UserID    int64   `gorm:"column:user_id;not null;uniqueIndex:idx_comment_likes_pair" json:"user_id"`
	CommentID int64   `gorm:"column:comment_id;not null;uniqueIndex:idx_comment_likes_pair;index" json:"comment_id"`
	User      User    `gorm:"foreignKey:UserID" json:"-"`
	Comment   Comment `gorm:"foreignKey:CommentID" json:"-"`
}

func (CommentLike) TableName() string { return "comment_likes" }
