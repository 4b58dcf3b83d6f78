package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/threadlog/internal/attachment"
	"github.com/threadlog/internal/db"
	"github.com/threadlog/internal/realtime"
	"github.com/threadlog/internal/storage"
)

type testEnv struct {
	db            *gorm.DB
	uploadDir     string
	hub           *realtime.Hub
	blogBucket    *storage.LocalBucket
	commentBucket *storage.LocalBucket
	auth          *AuthService
	blogs         *BlogService
	comments      *CommentService
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func setupServiceEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := setupServiceTestDB(t)
	dir := t.TempDir()

	blogBucket, err := storage.NewLocalBucket(dir, "/static/uploads", "blog-images")
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	commentBucket, err := storage.NewLocalBucket(dir, "/static/uploads", "comment_images")
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	log := zap.NewNop()
	blogImages := attachment.NewManager(blogBucket, attachment.NewBlogImageStore(gdb), 15<<20, log)
	commentImages := attachment.NewManager(commentBucket, attachment.NewCommentImageStore(gdb), 5<<20, log)
	hub := realtime.NewHub()

	return &testEnv{
		db:            gdb,
		uploadDir:     dir,
		hub:           hub,
		blogBucket:    blogBucket,
		commentBucket: commentBucket,
		auth:          NewAuthService(gdb, log),
		blogs:         NewBlogService(gdb, blogImages, commentImages, hub, 10, log),
		comments:      NewCommentService(gdb, commentImages, hub, log),
	}
}

func (e *testEnv) signUp(t *testing.T, email string) *SessionUser {
	t.Helper()
	user, err := e.auth.SignUp(context.Background(), SignUpInput{
		Email:           email,
		Password:        "secret123",
		ConfirmPassword: "secret123",
		FirstName:       "Test",
		LastName:        "User",
	})
	if err != nil {
		t.Fatalf("failed to sign up: %v", err)
	}
	return user
}

func (e *testEnv) createBlog(t *testing.T, userID, title string, files ...attachment.File) *BlogView {
	t.Helper()
	blog, err := e.blogs.Create(context.Background(), userID, BlogInput{Title: title, Content: "Body of " + title}, files)
	if err != nil {
		t.Fatalf("failed to create blog: %v", err)
	}
	return blog
}

func pngUpload(t *testing.T, name string) attachment.File {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return attachment.File{Name: name, ContentType: "image/png", Size: int64(buf.Len()), Data: buf.Bytes()}
}

func strPtr(s string) *string { return &s }
