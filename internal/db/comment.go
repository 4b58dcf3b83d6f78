package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlogComment is a flat comment row; ParentCommentID links replies to their parent.
type BlogComment struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	BlogID          string    `gorm:"type:varchar(36);index;not null" json:"blog_id"`
	UserID          string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	ParentCommentID *string   `gorm:"type:varchar(36);index" json:"parent_comment_id"`
	Content         *string   `gorm:"type:text" json:"content"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (BlogComment) TableName() string {
	return "blog_comments"
}

func (c *BlogComment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CommentImage 评论附带的单张图片，BlogID 冗余存储以便按文章过滤变更通知。
type CommentImage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CommentID string    `gorm:"type:varchar(36);index;not null" json:"comment_id"`
	BlogID    string    `gorm:"type:varchar(36);index" json:"blog_id"`
	ImageURL  string    `gorm:"not null" json:"image_url"`
	ObjectKey string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (CommentImage) TableName() string {
	return "comment_images"
}

func (i *CommentImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
