package client

import (
	"context"

	"github.com/threadlog/internal/comments"
	"github.com/threadlog/internal/realtime"
)

// Gateway is the remote backend: auth, row CRUD, uploads and the change feed.
// Errors carry an apperr kind and a user-facing message.
type Gateway interface {
	SignUp(ctx context.Context, req SignUpRequest) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	Session(ctx context.Context) (*User, error)

	ListBlogs(ctx context.Context) ([]Blog, error)
	GetBlog(ctx context.Context, id string) (*Blog, error)
	ListMyBlogs(ctx context.Context, page, pageSize int, search string) (*BlogPage, error)
	CreateBlog(ctx context.Context, draft BlogDraft) (*Blog, error)
	UpdateBlog(ctx context.Context, id string, draft BlogDraft, removeImageIDs []string) (*Blog, error)
	DeleteBlog(ctx context.Context, id string) error

	ListComments(ctx context.Context, blogID string) (comments.Forest, error)
	CreateComment(ctx context.Context, blogID string, draft CommentDraft) (*comments.Comment, error)
	UpdateComment(ctx context.Context, id string, edit CommentEdit) (*comments.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// Watch streams change events of a blog until ctx is done; the channel is then closed.
	Watch(ctx context.Context, blogID string) (<-chan realtime.Event, error)
}
