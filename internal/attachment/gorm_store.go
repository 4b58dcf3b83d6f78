package attachment

import (
	"context"

	"github.com/threadlog/internal/db"
	"gorm.io/gorm"
)

// BlogImageStore keeps metadata rows in blog_images.
type BlogImageStore struct {
	db *gorm.DB
}

func NewBlogImageStore(gdb *gorm.DB) *BlogImageStore {
	return &BlogImageStore{db: gdb}
}

func (s *BlogImageStore) Insert(ctx context.Context, rec *Record) error {
	row := db.BlogImage{BlogID: rec.ParentID, ImageURL: rec.ImageURL, ObjectKey: rec.ObjectKey}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

func (s *BlogImageStore) ListByIDs(ctx context.Context, ids []string) ([]Record, error) {
	var rows []db.BlogImage
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return blogRecords(rows), nil
}

func (s *BlogImageStore) ListByParent(ctx context.Context, parentID string) ([]Record, error) {
	var rows []db.BlogImage
	if err := s.db.WithContext(ctx).Where("blog_id = ?", parentID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return blogRecords(rows), nil
}

func (s *BlogImageStore) Delete(ctx context.Context, ids []string) error {
	return s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&db.BlogImage{}).Error
}

func blogRecords(rows []db.BlogImage) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{ID: r.ID, ParentID: r.BlogID, ImageURL: r.ImageURL, ObjectKey: r.ObjectKey, CreatedAt: r.CreatedAt})
	}
	return out
}

// CommentImageStore keeps metadata rows in comment_images. The owning blog id is
// copied from the comment so change notifications can be filtered by post.
type CommentImageStore struct {
	db *gorm.DB
}

func NewCommentImageStore(gdb *gorm.DB) *CommentImageStore {
	return &CommentImageStore{db: gdb}
}

func (s *CommentImageStore) Insert(ctx context.Context, rec *Record) error {
	var comment db.BlogComment
	if err := s.db.WithContext(ctx).Select("id", "blog_id").First(&comment, "id = ?", rec.ParentID).Error; err != nil {
		return err
	}

	row := db.CommentImage{CommentID: rec.ParentID, BlogID: comment.BlogID, ImageURL: rec.ImageURL, ObjectKey: rec.ObjectKey}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

func (s *CommentImageStore) ListByIDs(ctx context.Context, ids []string) ([]Record, error) {
	var rows []db.CommentImage
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return commentRecords(rows), nil
}

func (s *CommentImageStore) ListByParent(ctx context.Context, parentID string) ([]Record, error) {
	var rows []db.CommentImage
	if err := s.db.WithContext(ctx).Where("comment_id = ?", parentID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return commentRecords(rows), nil
}

func (s *CommentImageStore) Delete(ctx context.Context, ids []string) error {
	return s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&db.CommentImage{}).Error
}

func commentRecords(rows []db.CommentImage) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{ID: r.ID, ParentID: r.CommentID, ImageURL: r.ImageURL, ObjectKey: r.ObjectKey, CreatedAt: r.CreatedAt})
	}
	return out
}
