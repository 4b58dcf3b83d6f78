package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Blog 定义了文章模型
type Blog struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"type:varchar(36);index;not null" json:"author_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Blog) TableName() string {
	return "blogs"
}

func (b *Blog) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// BlogImage is one attachment of a blog, ordered by CreatedAt.
type BlogImage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	BlogID    string    `gorm:"type:varchar(36);index;not null" json:"blog_id"`
	ImageURL  string    `gorm:"not null" json:"image_url"`
	ObjectKey string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (BlogImage) TableName() string {
	return "blog_images"
}

func (i *BlogImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
