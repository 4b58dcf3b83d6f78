package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/attachment"
	"github.com/threadlog/internal/comments"
	"github.com/threadlog/internal/db"
	"github.com/threadlog/internal/logging"
	"github.com/threadlog/internal/realtime"
)

var (
	ErrCommentNotFound   = apperr.New(apperr.NotFound, "Comment not found")
	ErrParentNotFound    = apperr.New(apperr.NotFound, "The comment you are replying to no longer exists")
	ErrCommentEmpty      = comments.ErrEmpty
	ErrCommentHasReplies = comments.ErrHasReplies
	ErrNotCommentAuthor  = apperr.New(apperr.Authorization, "You can only modify your own comments")
)

// CommentInput is a new comment or reply.
type CommentInput struct {
	Content         string
	ParentCommentID string
}

// CommentUpdate edits a comment. A nil Content keeps the current text.
type CommentUpdate struct {
	Content     *string
	RemoveImage bool
}

// CommentService 负责评论的增删改查，并在每次变更后发布通知。
type CommentService struct {
	db     *gorm.DB
	images *attachment.Manager
	hub    realtime.Publisher
	logger *zap.Logger
}

func NewCommentService(gdb *gorm.DB, images *attachment.Manager, hub realtime.Publisher, logger *zap.Logger) *CommentService {
	return &CommentService{db: gdb, images: images, hub: hub, logger: logging.Named(logger, "comment")}
}

// Forest loads every comment of a blog and assembles the reply tree.
func (s *CommentService) Forest(ctx context.Context, blogID string) (comments.Forest, error) {
	if err := s.blogExists(ctx, blogID); err != nil {
		return nil, err
	}

	var rows []db.BlogComment
	if err := s.db.WithContext(ctx).Where("blog_id = ?", blogID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	var images []db.CommentImage
	if err := s.db.WithContext(ctx).Where("blog_id = ?", blogID).Order("created_at asc").Find(&images).Error; err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(rows))
	records := make([]comments.Record, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
		records = append(records, toRecord(row))
	}
	profiles, err := loadProfiles(ctx, s.db, userIDs)
	if err != nil {
		return nil, err
	}

	imageRecords := make([]comments.ImageRecord, 0, len(images))
	for _, img := range images {
		imageRecords = append(imageRecords, comments.ImageRecord{ID: img.ID, CommentID: img.CommentID, ImageURL: img.ImageURL, CreatedAt: img.CreatedAt})
	}

	return comments.Assemble(records, imageRecords, toAuthors(profiles)), nil
}

// Create stores the comment, then its image. An image failure after the row
// exists is logged and the comment is returned without it.
func (s *CommentService) Create(ctx context.Context, userID, blogID string, in CommentInput, image *attachment.File) (*comments.Comment, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	content := strings.TrimSpace(in.Content)
	if content == "" && image == nil {
		return nil, ErrCommentEmpty
	}
	if image != nil {
		if err := s.images.Validate([]attachment.File{*image}); err != nil {
			return nil, err
		}
	}
	if err := s.blogExists(ctx, blogID); err != nil {
		return nil, err
	}

	row := db.BlogComment{BlogID: blogID, UserID: userID}
	if content != "" {
		row.Content = &content
	}
	if parentID := strings.TrimSpace(in.ParentCommentID); parentID != "" {
		var count int64
		if err := s.db.WithContext(ctx).Model(&db.BlogComment{}).Where("id = ? AND blog_id = ?", parentID, blogID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrParentNotFound
		}
		row.ParentCommentID = &parentID
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	s.publish(realtime.TableComments, realtime.EventInsert, blogID, row.ID)

	if image != nil {
		s.attachImage(ctx, row, *image)
	}
	return s.node(ctx, row)
}

// Update applies text and image changes. The result must keep text or an image.
func (s *CommentService) Update(ctx context.Context, userID, commentID string, in CommentUpdate, image *attachment.File) (*comments.Comment, error) {
	row, err := s.owned(ctx, userID, commentID)
	if err != nil {
		return nil, err
	}

	content := row.Content
	if in.Content != nil {
		trimmed := strings.TrimSpace(*in.Content)
		content = nil
		if trimmed != "" {
			content = &trimmed
		}
	}

	existing, err := s.images.ListByParent(ctx, commentID)
	if err != nil {
		return nil, err
	}
	hasImage := image != nil || (len(existing) > 0 && !in.RemoveImage)
	if content == nil && !hasImage {
		return nil, ErrCommentEmpty
	}
	if image != nil {
		if err := s.images.Validate([]attachment.File{*image}); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(row).Updates(map[string]any{"content": content, "updated_at": time.Now()}).Error; err != nil {
		return nil, err
	}
	row.Content = content

	if len(existing) > 0 && (in.RemoveImage || image != nil) {
		if err := s.images.RemoveByParent(ctx, commentID); err != nil {
			return nil, err
		}
		for _, img := range existing {
			s.publish(realtime.TableCommentImages, realtime.EventDelete, row.BlogID, img.ID)
		}
	}
	if image != nil {
		s.attachImage(ctx, *row, *image)
	}

	s.publish(realtime.TableComments, realtime.EventUpdate, row.BlogID, row.ID)
	return s.node(ctx, *row)
}

// Delete removes a comment that has no replies, together with its image.
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	row, err := s.owned(ctx, userID, commentID)
	if err != nil {
		return err
	}

	var replies int64
	if err := s.db.WithContext(ctx).Model(&db.BlogComment{}).Where("parent_comment_id = ?", commentID).Count(&replies).Error; err != nil {
		return err
	}
	if replies > 0 {
		return ErrCommentHasReplies
	}

	if err := s.images.RemoveByParent(ctx, commentID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&db.BlogComment{}, "id = ?", commentID).Error; err != nil {
		return err
	}

	s.publish(realtime.TableComments, realtime.EventDelete, row.BlogID, row.ID)
	return nil
}

func (s *CommentService) attachImage(ctx context.Context, row db.BlogComment, image attachment.File) {
	records, err := s.images.Upload(ctx, row.ID, []attachment.File{image})
	if err != nil {
		s.logger.Warn("comment saved but image upload failed", zap.String("comment_id", row.ID), zap.Error(err))
		return
	}
	for _, rec := range records {
		s.publish(realtime.TableCommentImages, realtime.EventInsert, row.BlogID, rec.ID)
	}
}

func (s *CommentService) publish(table, eventType, blogID, recordID string) {
	s.hub.Publish(realtime.Event{Table: table, Type: eventType, BlogID: blogID, RecordID: recordID})
}

func (s *CommentService) blogExists(ctx context.Context, blogID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Blog{}).Where("id = ?", blogID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrBlogNotFound
	}
	return nil
}

func (s *CommentService) owned(ctx context.Context, userID, commentID string) (*db.BlogComment, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	var row db.BlogComment
	if err := s.db.WithContext(ctx).First(&row, "id = ?", commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	if row.UserID != userID {
		return nil, ErrNotCommentAuthor
	}
	return &row, nil
}

// node builds a single comment with author and image but without replies.
func (s *CommentService) node(ctx context.Context, row db.BlogComment) (*comments.Comment, error) {
	rec := toRecord(row)
	node := comments.Comment{
		ID:              rec.ID,
		BlogID:          rec.BlogID,
		UserID:          rec.UserID,
		ParentCommentID: rec.ParentCommentID,
		Content:         rec.Content,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		Replies:         []comments.Comment{},
	}

	profiles, err := loadProfiles(ctx, s.db, []string{row.UserID})
	if err != nil {
		return nil, err
	}
	if authors := toAuthors(profiles); len(authors) > 0 {
		node.Author = &authors[0]
	}

	images, err := s.images.ListByParent(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	if n := len(images); n > 0 {
		last := images[n-1]
		node.Image = &comments.Image{ID: last.ID, ImageURL: last.ImageURL, CreatedAt: last.CreatedAt}
	}
	return &node, nil
}

func toRecord(row db.BlogComment) comments.Record {
	return comments.Record{
		ID:              row.ID,
		BlogID:          row.BlogID,
		UserID:          row.UserID,
		ParentCommentID: row.ParentCommentID,
		Content:         row.Content,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func toAuthors(profiles map[string]db.Profile) []comments.Author {
	out := make([]comments.Author, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, comments.Author{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName})
	}
	return out
}
