package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/threadlog/internal/config"
)

func TestLocalBucketUploadIsNonOverwriting(t *testing.T) {
	dir := t.TempDir()
	bucket, err := NewLocalBucket(dir, "/static/uploads/", "blog-images")
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	url, err := bucket.Upload(context.Background(), "post-1/1700-abc.png", strings.NewReader("first"), 5, "image/png")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if url != "/static/uploads/blog-images/post-1/1700-abc.png" {
		t.Fatalf("unexpected url %q", url)
	}

	_, err = bucket.Upload(context.Background(), "post-1/1700-abc.png", strings.NewReader("second"), 6, "image/png")
	if !errors.Is(err, ErrObjectExists) {
		t.Fatalf("expected ErrObjectExists, got %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "blog-images", "post-1", "1700-abc.png"))
	if err != nil {
		t.Fatalf("failed to read stored object: %v", err)
	}
	if string(data) != "first" {
		t.Fatalf("object was overwritten: %q", data)
	}
}

func TestLocalBucketRemoveIgnoresMissing(t *testing.T) {
	bucket, err := NewLocalBucket(t.TempDir(), "/static/uploads", "comment_images")
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	if _, err := bucket.Upload(context.Background(), "c1/a.png", strings.NewReader("x"), 1, "image/png"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if err := bucket.Remove(context.Background(), []string{"c1/a.png", "c1/missing.png"}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(bucket.dir, "c1", "a.png")); !os.IsNotExist(err) {
		t.Fatalf("expected object removed, stat err=%v", err)
	}
}

func TestLocalBucketRejectsEscapingKeys(t *testing.T) {
	bucket, err := NewLocalBucket(t.TempDir(), "/static/uploads", "blog-images")
	if err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	if _, err := bucket.Upload(context.Background(), "../evil.png", strings.NewReader("x"), 1, "image/png"); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}

func TestKeyFromURL(t *testing.T) {
	cases := []struct {
		url  string
		key  string
		want bool
	}{
		{"https://cdn.example.com/storage/v1/object/public/blog-images/p1/1-a.png", "p1/1-a.png", true},
		{"/static/uploads/blog-images/p1/1-a.png?v=2", "p1/1-a.png", true},
		{"https://cdn.example.com/other/p1/1-a.png", "", false},
		{"/static/uploads/blog-images/", "", false},
	}
	for _, tc := range cases {
		key, ok := KeyFromURL("blog-images", tc.url)
		if ok != tc.want || key != tc.key {
			t.Fatalf("KeyFromURL(%q) = %q, %v; want %q, %v", tc.url, key, ok, tc.key, tc.want)
		}
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := config.AppConfig{StorageBackend: "ftp"}
	if _, err := Open(context.Background(), cfg, "blog-images"); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	cfg = config.AppConfig{StorageBackend: "local", UploadDir: t.TempDir(), UploadURLPath: "/static/uploads"}
	bucket, err := Open(context.Background(), cfg, "blog-images")
	if err != nil {
		t.Fatalf("failed to open local bucket: %v", err)
	}
	if bucket.Name() != "blog-images" {
		t.Fatalf("unexpected bucket name %q", bucket.Name())
	}
}
