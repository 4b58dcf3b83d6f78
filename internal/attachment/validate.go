// Package attachment validates image files and stores them as blob + metadata row pairs.
package attachment

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/threadlog/internal/apperr"
)

// ImageTypes is the allow-list shared by blog and comment images.
var ImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

var (
	ErrFileTooLarge    = apperr.New(apperr.Validation, "File is too large")
	ErrUnsupportedType = apperr.New(apperr.Validation, "Only JPEG, PNG and WebP images are allowed")
)

// File is an in-memory upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// FromMultipart reads a multipart file header into memory. Files over maxBytes
// are rejected before any of the body is read.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (File, error) {
	f := File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Size: fh.Size}
	if fh.Size > maxBytes {
		return f, fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
	}
	src, err := fh.Open()
	if err != nil {
		return f, err
	}
	defer src.Close()

	f.Data, err = io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return f, err
	}
	if int64(len(f.Data)) > maxBytes {
		f.Data = nil
		return f, fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
	}
	f.Size = int64(len(f.Data))
	return f, nil
}

// Validate 在任何网络调用之前检查文件大小与类型。
// The declared type must be allowed, the sniffed type must agree with it and the
// image header must decode.
func Validate(f File, maxSizeBytes int64, allowed []string) error {
	if f.Size > maxSizeBytes || int64(len(f.Data)) > maxSizeBytes {
		return fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
	}

	declared := normalizeType(f.ContentType)
	if !contains(allowed, declared) {
		return fmt.Errorf("%s: %w", f.Name, ErrUnsupportedType)
	}
	if !mimetype.Detect(f.Data).Is(declared) {
		return fmt.Errorf("%s: content does not match %s: %w", f.Name, declared, ErrUnsupportedType)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err != nil {
		return fmt.Errorf("%s: %w", f.Name, ErrUnsupportedType)
	}
	return nil
}

// ValidateAll rejects the whole batch on the first invalid file.
func ValidateAll(files []File, maxSizeBytes int64, allowed []string) error {
	for _, f := range files {
		if err := Validate(f, maxSizeBytes, allowed); err != nil {
			return err
		}
	}
	return nil
}

// Extension maps an allowed content type to the file extension used in storage keys.
func Extension(contentType string) string {
	switch normalizeType(contentType) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

func normalizeType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
