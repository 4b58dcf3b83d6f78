// Package client is the state layer of the blog frontend: it talks to the HTTP API
// through a Gateway and keeps the feed, the user's own posts, the open post and its
// comment forest consistent while requests are in flight.
package client

import (
	"time"

	"github.com/threadlog/internal/attachment"
)

type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type User struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Profile *Profile `json:"profile"`
}

type Image struct {
	ID        string    `json:"id"`
	BlogID    string    `json:"blog_id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Blog struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Author      *Profile  `json:"author,omitempty"`
	Images      []Image   `json:"images"`
	ContentHTML string    `json:"content_html,omitempty"`
}

// BlogPage is one page of the user's own posts.
type BlogPage struct {
	Blogs []Blog `json:"blogs"`
	Total int    `json:"total"`
}

type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

// BlogDraft is the post form.
type BlogDraft struct {
	Title   string
	Content string
	Images  []attachment.File
}

// CommentDraft is a new comment or reply.
type CommentDraft struct {
	Content         string
	ParentCommentID string
	Image           *attachment.File
}

// CommentEdit changes a comment. A nil Content keeps the current text.
type CommentEdit struct {
	Content     *string
	Image       *attachment.File
	RemoveImage bool
}

// Limits are the per-kind upload limits checked before any request.
type Limits struct {
	BlogImageMaxBytes    int64
	CommentImageMaxBytes int64
}

// DefaultLimits match the server defaults.
var DefaultLimits = Limits{BlogImageMaxBytes: 15 << 20, CommentImageMaxBytes: 5 << 20}

// MyPosts is a snapshot of the paginated own-posts view.
type MyPosts struct {
	Blogs      []Blog
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	Search     string
}
