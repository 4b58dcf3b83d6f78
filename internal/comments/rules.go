package comments

import (
	"strings"

	"github.com/threadlog/internal/apperr"
)

var (
	ErrEmpty      = apperr.New(apperr.Validation, "Please add some text or an image")
	ErrHasReplies = apperr.New(apperr.Conflict, "Comments with replies cannot be deleted")
)

// CheckContent requires text or an image.
func CheckContent(content string, hasImage bool) error {
	if strings.TrimSpace(content) == "" && !hasImage {
		return ErrEmpty
	}
	return nil
}

// CheckDeletable blocks deleting a comment that has replies.
func (f Forest) CheckDeletable(id string) error {
	if f.HasReplies(id) {
		return ErrHasReplies
	}
	return nil
}
