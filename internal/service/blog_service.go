package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/attachment"
	"github.com/threadlog/internal/db"
	"github.com/threadlog/internal/logging"
	"github.com/threadlog/internal/realtime"
)

var (
	ErrBlogNotFound  = apperr.New(apperr.NotFound, "Post not found")
	ErrNotBlogAuthor = apperr.New(apperr.Authorization, "You can only modify your own posts")
)

// BlogInput represents fields accepted when creating or updating a post.
type BlogInput struct {
	Title   string `validate:"required,max=200"`
	Content string `validate:"required"`
}

// BlogView is a post with its author and images, images ordered oldest first.
type BlogView struct {
	db.Blog
	Author      *db.Profile    `json:"author,omitempty"`
	Images      []db.BlogImage `json:"images"`
	ContentHTML string         `json:"content_html,omitempty"`
}

// BlogFilter describes the own-posts query.
type BlogFilter struct {
	Search   string
	Page     int
	PageSize int
}

// BlogListResult aggregates one page of posts and the filtered total.
type BlogListResult struct {
	Blogs      []BlogView `json:"blogs"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// BlogService wraps post related database and storage operations.
type BlogService struct {
	db              *gorm.DB
	images          *attachment.Manager
	commentImages   *attachment.Manager
	hub             realtime.Publisher
	logger          *zap.Logger
	defaultPageSize int
}

func NewBlogService(gdb *gorm.DB, images, commentImages *attachment.Manager, hub realtime.Publisher, pageSize int, logger *zap.Logger) *BlogService {
	return &BlogService{
		db:              gdb,
		images:          images,
		commentImages:   commentImages,
		hub:             hub,
		logger:          logging.Named(logger, "blog"),
		defaultPageSize: normalizePerPage(pageSize, 10),
	}
}

// Feed returns every post, newest first, with authors and images.
func (s *BlogService) Feed(ctx context.Context) ([]BlogView, error) {
	var blogs []db.Blog
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&blogs).Error; err != nil {
		return nil, err
	}
	return s.views(ctx, blogs)
}

// Get returns one post with rendered content.
func (s *BlogService) Get(ctx context.Context, id string) (*BlogView, error) {
	blog, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []db.Blog{*blog})
	if err != nil {
		return nil, err
	}
	view := views[0]
	html, err := RenderMarkdown(view.Content)
	if err != nil {
		s.logger.Warn("failed to render post content", zap.String("blog_id", id), zap.Error(err))
	}
	view.ContentHTML = html
	return &view, nil
}

// ListMine 返回当前用户自己的文章，支持标题模糊搜索与分页。
func (s *BlogService) ListMine(ctx context.Context, userID string, filter BlogFilter) (*BlogListResult, error) {
	pageSize := normalizePerPage(filter.PageSize, s.defaultPageSize)
	page := normalizePage(filter.Page, pageSize)

	query := s.db.WithContext(ctx).Model(&db.Blog{}).Where("author_id = ?", userID)
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var blogs []db.Blog
	if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&blogs).Error; err != nil {
		return nil, err
	}

	views, err := s.views(ctx, blogs)
	if err != nil {
		return nil, err
	}

	return &BlogListResult{
		Blogs:      views,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: calculateTotalPages(total, pageSize),
	}, nil
}

// Create stores the post, then its images. Image failures after the post exists
// are logged and the post is still returned.
func (s *BlogService) Create(ctx context.Context, userID string, in BlogInput, files []attachment.File) (*BlogView, error) {
	in = trimBlogInput(in)
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.images.Validate(files); err != nil {
		return nil, err
	}

	blog := db.Blog{Title: in.Title, Content: in.Content, AuthorID: userID}
	if err := s.db.WithContext(ctx).Create(&blog).Error; err != nil {
		return nil, err
	}

	s.uploadImages(ctx, blog.ID, files)
	return s.Get(ctx, blog.ID)
}

// Update changes title and content, removes the listed images and appends new ones.
func (s *BlogService) Update(ctx context.Context, userID, blogID string, in BlogInput, files []attachment.File, removeImageIDs []string) (*BlogView, error) {
	in = trimBlogInput(in)
	blog, err := s.owned(ctx, userID, blogID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.images.Validate(files); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(blog).Updates(map[string]any{"title": in.Title, "content": in.Content}).Error; err != nil {
		return nil, err
	}

	if len(removeImageIDs) > 0 {
		var ids []string
		if err := s.db.WithContext(ctx).Model(&db.BlogImage{}).
			Where("blog_id = ? AND id IN ?", blogID, removeImageIDs).
			Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		if err := s.images.RemoveByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}

	s.uploadImages(ctx, blogID, files)
	return s.Get(ctx, blogID)
}

// Delete removes the post together with its images, comments and comment images.
func (s *BlogService) Delete(ctx context.Context, userID, blogID string) error {
	if _, err := s.owned(ctx, userID, blogID); err != nil {
		return err
	}

	var imageIDs []string
	if err := s.db.WithContext(ctx).Model(&db.CommentImage{}).Where("blog_id = ?", blogID).Pluck("id", &imageIDs).Error; err != nil {
		return err
	}
	if err := s.commentImages.RemoveByIDs(ctx, imageIDs); err != nil {
		return err
	}

	var commentIDs []string
	if err := s.db.WithContext(ctx).Model(&db.BlogComment{}).Where("blog_id = ?", blogID).Pluck("id", &commentIDs).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("blog_id = ?", blogID).Delete(&db.BlogComment{}).Error; err != nil {
		return err
	}
	for _, id := range commentIDs {
		s.hub.Publish(realtime.Event{Table: realtime.TableComments, Type: realtime.EventDelete, BlogID: blogID, RecordID: id})
	}

	if err := s.images.RemoveByParent(ctx, blogID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&db.Blog{}, "id = ?", blogID).Error; err != nil {
		return err
	}

	s.logger.Info("post deleted", zap.String("blog_id", blogID), zap.Int("comments", len(commentIDs)))
	return nil
}

func (s *BlogService) uploadImages(ctx context.Context, blogID string, files []attachment.File) {
	if len(files) == 0 {
		return
	}
	if _, err := s.images.Upload(ctx, blogID, files); err != nil {
		s.logger.Warn("post saved but image upload failed", zap.String("blog_id", blogID), zap.Error(err))
	}
}

// Exists reports ErrBlogNotFound for an unknown id without loading the post.
func (s *BlogService) Exists(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Blog{}).Where("id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrBlogNotFound
	}
	return nil
}

func (s *BlogService) find(ctx context.Context, id string) (*db.Blog, error) {
	var blog db.Blog
	if err := s.db.WithContext(ctx).First(&blog, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlogNotFound
		}
		return nil, err
	}
	return &blog, nil
}

func (s *BlogService) owned(ctx context.Context, userID, blogID string) (*db.Blog, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	blog, err := s.find(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if blog.AuthorID != userID {
		return nil, ErrNotBlogAuthor
	}
	return blog, nil
}

func (s *BlogService) views(ctx context.Context, blogs []db.Blog) ([]BlogView, error) {
	out := make([]BlogView, 0, len(blogs))
	if len(blogs) == 0 {
		return out, nil
	}

	blogIDs := make([]string, 0, len(blogs))
	authorIDs := make([]string, 0, len(blogs))
	for _, b := range blogs {
		blogIDs = append(blogIDs, b.ID)
		authorIDs = append(authorIDs, b.AuthorID)
	}

	profiles, err := loadProfiles(ctx, s.db, authorIDs)
	if err != nil {
		return nil, err
	}

	var images []db.BlogImage
	if err := s.db.WithContext(ctx).Where("blog_id IN ?", blogIDs).Order("created_at asc").Find(&images).Error; err != nil {
		return nil, err
	}
	imagesByBlog := make(map[string][]db.BlogImage, len(blogs))
	for _, img := range images {
		imagesByBlog[img.BlogID] = append(imagesByBlog[img.BlogID], img)
	}

	for _, b := range blogs {
		view := BlogView{Blog: b, Images: imagesByBlog[b.ID]}
		if view.Images == nil {
			view.Images = []db.BlogImage{}
		}
		if p, ok := profiles[b.AuthorID]; ok {
			author := p
			view.Author = &author
		}
		out = append(out, view)
	}
	return out, nil
}

func loadProfiles(ctx context.Context, gdb *gorm.DB, ids []string) (map[string]db.Profile, error) {
	out := make(map[string]db.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []db.Profile
	if err := gdb.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func trimBlogInput(in BlogInput) BlogInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	return in
}
