package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/attachment"
)

const sessionUserKey = "user_id"

func respondError(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": kind})
}

// respondAppError maps a service error to its status and user-facing message.
func (a *API) respondAppError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Transient {
		a.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	respondError(c, apperr.HTTPStatus(kind), kind, apperr.Message(err))
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, apperr.Validation, message)
		return false
	}
	return true
}

func currentUserID(c *gin.Context) string {
	if id, ok := sessions.Default(c).Get(sessionUserKey).(string); ok {
		return id
	}
	return ""
}

// formFiles reads every file sent under any of the given field names.
// Non-multipart requests carry no files.
func formFiles(c *gin.Context, maxBytes int64, fields ...string) ([]attachment.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.Validation, "Invalid upload", err)
	}

	var files []attachment.File
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := attachment.FromMultipart(fh, maxBytes)
			if errors.Is(err, attachment.ErrFileTooLarge) {
				return nil, err
			}
			if err != nil {
				return nil, apperr.Wrap(apperr.Validation, "Invalid upload", err)
			}
			files = append(files, f)
		}
	}
	return files, nil
}

// formFile returns the single file under field, or nil when none was sent.
func formFile(c *gin.Context, maxBytes int64, field string) (*attachment.File, error) {
	files, err := formFiles(c, maxBytes, field)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return &files[0], nil
}

func formList(c *gin.Context, fields ...string) []string {
	var out []string
	for _, field := range fields {
		for _, raw := range c.PostFormArray(field) {
			for _, part := range strings.Split(raw, ",") {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
	}
	return out
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func formBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.PostForm(key)))
	return err == nil && value
}
