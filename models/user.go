package models

import "time"

// Base 所有表共用的主键与创建时间
type Base struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

// PrimaryKey 供 gormtool.EachPage 做主键翻页
func (b Base) PrimaryKey() int64 { return b.ID }

type User struct {
	Base
	Name string `gorm:"column:name;size:100;not null" json:"name"`
}

func (User) TableName() string { return "users" }

type Tag struct {
	Base
	Name string `gorm:"column:name;size:255;not null;uniqueIndex" json:"name"`
}

func (Tag) TableName() string { return "tags" }

// All 按依赖顺序返回全部模型，迁移时父表在前
func All() []interface{} {
	return []interface{}{
		&User{}, &Tag{}, &Post{}, &PostTag{}, &PostLike{}, &Comment{}, &CommentLike{},
	}
}
