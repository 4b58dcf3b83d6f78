package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/attachment"
	"github.com/threadlog/internal/comments"
	"github.com/threadlog/internal/logging"
	"github.com/threadlog/internal/pagination"
	"github.com/threadlog/internal/realtime"
)

var ErrPasswordMismatch = apperr.New(apperr.Validation, "Passwords do not match")

// Store holds the client state slices. Every loader takes a sequence number for its
// view before the request and drops the response when the view moved on meanwhile.
type Store struct {
	gw     Gateway
	limits Limits
	logger *zap.Logger

	mu      sync.Mutex
	user    *User
	feed    []Blog
	mine    []Blog
	pager   *pagination.State
	post    *Blog
	blogID  string
	forest  comments.Forest
	feedSeq uint64
	mineSeq uint64
	postSeq uint64
	treeSeq uint64

	search      *pagination.Debouncer
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

type Option func(*Store)

func WithLimits(l Limits) Option {
	return func(s *Store) { s.limits = l }
}

func WithPageSize(size int) Option {
	return func(s *Store) { s.pager = pagination.New(size) }
}

func WithDebounce(delay time.Duration) Option {
	return func(s *Store) { s.search = pagination.NewDebouncer(delay) }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.Named(l, "client") }
}

func NewStore(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:     gw,
		limits: DefaultLimits,
		logger: logging.Named(nil, "client"),
		pager:  pagination.New(pagination.DefaultPageSize),
		search: pagination.NewDebouncer(pagination.DefaultDebounce),
		forest: comments.Forest{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the pending search and the change feed.
func (s *Store) Close() {
	s.search.Stop()
	s.Unwatch()
}

// ---- session ----

func (s *Store) SignUp(ctx context.Context, req SignUpRequest) error {
	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	user, err := s.gw.SignUp(ctx, req)
	if err != nil {
		return err
	}
	s.setUser(user)
	return nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) error {
	user, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	s.setUser(user)
	return nil
}

// SignOut drops the session and every per-user slice.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.gw.SignOut(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = nil
	s.mine = nil
	s.mineSeq++
	s.pager = pagination.New(s.pager.PageSize())
	s.mu.Unlock()
	return nil
}

func (s *Store) RefreshSession(ctx context.Context) error {
	user, err := s.gw.Session(ctx)
	if err != nil {
		return err
	}
	s.setUser(user)
	return nil
}

func (s *Store) setUser(u *User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// ---- feed and own posts ----

func (s *Store) LoadFeed(ctx context.Context) error {
	s.mu.Lock()
	s.feedSeq++
	seq := s.feedSeq
	s.mu.Unlock()

	blogs, err := s.gw.ListBlogs(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.feedSeq {
		s.feed = blogs
	}
	return nil
}

// LoadMyPosts fetches the current page. When the reported total no longer reaches
// that page, it moves down and fetches once more.
func (s *Store) LoadMyPosts(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		s.mu.Lock()
		s.mineSeq++
		seq := s.mineSeq
		page, size, term := s.pager.Page(), s.pager.PageSize(), s.pager.SearchTerm()
		s.mu.Unlock()

		result, err := s.gw.ListMyBlogs(ctx, page, size, term)
		if err != nil {
			return err
		}

		s.mu.Lock()
		if seq != s.mineSeq {
			s.mu.Unlock()
			return nil
		}
		moved := s.pager.SetTotal(result.Total)
		if !moved || attempt == 1 {
			s.mine = result.Blogs
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *Store) SetPage(ctx context.Context, page int) error {
	s.mu.Lock()
	s.pager.SetPage(page)
	s.mu.Unlock()
	return s.LoadMyPosts(ctx)
}

// SetSearchTerm commits a term right away and refetches when the query changed.
func (s *Store) SetSearchTerm(ctx context.Context, term string) error {
	s.mu.Lock()
	changed := s.pager.SetSearchTerm(term)
	s.mu.Unlock()
	if !changed {
		return nil
	}
	return s.LoadMyPosts(ctx)
}

// SearchInput is the keystroke entry point: only the last term within the debounce
// window is committed. done, when set, receives the result of that commit.
func (s *Store) SearchInput(ctx context.Context, term string, done func(error)) {
	s.search.Trigger(func() {
		err := s.SetSearchTerm(ctx, term)
		if err != nil {
			s.logger.Warn("search refresh failed", zap.String("term", term), zap.Error(err))
		}
		if done != nil {
			done(err)
		}
	})
}

// ---- posts ----

func (s *Store) OpenPost(ctx context.Context, id string) error {
	s.mu.Lock()
	s.postSeq++
	seq := s.postSeq
	s.mu.Unlock()

	blog, err := s.gw.GetBlog(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.postSeq {
		s.post = blog
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, draft BlogDraft) (*Blog, error) {
	if err := attachment.ValidateAll(draft.Images, s.limits.BlogImageMaxBytes, attachment.ImageTypes); err != nil {
		return nil, err
	}
	blog, err := s.gw.CreateBlog(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pager.OnCreate()
	s.mu.Unlock()
	if err := s.LoadMyPosts(ctx); err != nil {
		return blog, err
	}
	return blog, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, draft BlogDraft, removeImageIDs []string) (*Blog, error) {
	if err := attachment.ValidateAll(draft.Images, s.limits.BlogImageMaxBytes, attachment.ImageTypes); err != nil {
		return nil, err
	}
	blog, err := s.gw.UpdateBlog(ctx, id, draft, removeImageIDs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.post != nil && s.post.ID == id {
		s.post = blog
	}
	for i := range s.mine {
		if s.mine[i].ID == id {
			s.mine[i] = *blog
		}
	}
	s.mu.Unlock()
	return blog, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	if err := s.gw.DeleteBlog(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.pager.OnDelete(1)
	if s.post != nil && s.post.ID == id {
		s.post = nil
		s.postSeq++
	}
	if s.blogID == id {
		s.blogID = ""
		s.forest = comments.Forest{}
		s.treeSeq++
	}
	s.feed = withoutBlog(s.feed, id)
	s.mu.Unlock()

	return s.LoadMyPosts(ctx)
}

func withoutBlog(blogs []Blog, id string) []Blog {
	out := make([]Blog, 0, len(blogs))
	for _, b := range blogs {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

// ---- comments ----

// OpenComments switches the thread view to blogID and loads its forest.
// A response for a thread that is no longer open is discarded.
func (s *Store) OpenComments(ctx context.Context, blogID string) error {
	s.mu.Lock()
	if s.blogID != blogID {
		s.blogID = blogID
		s.forest = comments.Forest{}
	}
	s.treeSeq++
	seq := s.treeSeq
	s.mu.Unlock()

	forest, err := s.gw.ListComments(ctx, blogID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.treeSeq && s.blogID == blogID {
		s.forest = forest
	}
	return nil
}

func (s *Store) CreateComment(ctx context.Context, blogID string, draft CommentDraft) (*comments.Comment, error) {
	if err := comments.CheckContent(draft.Content, draft.Image != nil); err != nil {
		return nil, err
	}
	if draft.Image != nil {
		if err := attachment.Validate(*draft.Image, s.limits.CommentImageMaxBytes, attachment.ImageTypes); err != nil {
			return nil, err
		}
	}

	created, err := s.gw.CreateComment(ctx, blogID, draft)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// a change-feed refetch may already hold the new comment
	if _, loaded := s.forest.Find(created.ID); s.blogID == blogID && !loaded {
		s.forest = s.forest.Insert(*created)
	}
	s.mu.Unlock()
	return created, nil
}

func (s *Store) UpdateComment(ctx context.Context, id string, edit CommentEdit) (*comments.Comment, error) {
	if edit.Image != nil {
		if err := attachment.Validate(*edit.Image, s.limits.CommentImageMaxBytes, attachment.ImageTypes); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	current, found := s.forest.Find(id)
	s.mu.Unlock()
	if found {
		content := ""
		if current.Content != nil {
			content = *current.Content
		}
		if edit.Content != nil {
			content = *edit.Content
		}
		hasImage := edit.Image != nil || (current.Image != nil && !edit.RemoveImage)
		if err := comments.CheckContent(content, hasImage); err != nil {
			return nil, err
		}
	}

	updated, err := s.gw.UpdateComment(ctx, id, edit)
	if err != nil {
		return nil, err
	}

	patch := comments.Patch{
		ID:          id,
		Content:     updated.Content,
		Image:       updated.Image,
		RemoveImage: updated.Image == nil,
		UpdatedAt:   &updated.UpdatedAt,
	}
	if patch.Content == nil {
		empty := ""
		patch.Content = &empty
	}

	s.mu.Lock()
	s.forest = s.forest.Update(patch)
	s.mu.Unlock()
	return updated, nil
}

// DeleteComment refuses a comment that still has replies in the loaded thread
// before any request is sent.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.forest.CheckDeletable(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.gw.DeleteComment(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.forest = s.forest.Remove(id)
	s.mu.Unlock()
	return nil
}

// ---- change feed ----

// Watch subscribes to blogID's change feed. Each event for the open thread triggers
// a full comment refetch that overwrites local state. A previous watch is stopped.
func (s *Store) Watch(ctx context.Context, blogID string) error {
	s.Unwatch()

	watchCtx, cancel := context.WithCancel(ctx)
	events, err := s.gw.Watch(watchCtx, blogID)
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.watchCancel = cancel
	s.watchDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for ev := range events {
			s.mu.Lock()
			open := s.blogID == ev.BlogID
			s.mu.Unlock()
			if !open {
				continue
			}
			if ev.Table != realtime.TableComments && ev.Table != realtime.TableCommentImages {
				continue
			}
			if err := s.OpenComments(watchCtx, ev.BlogID); err != nil {
				s.logger.Warn("refetch after change failed",
					zap.String("blog_id", ev.BlogID),
					zap.String("table", ev.Table),
					zap.Error(err))
			}
		}
		if watchCtx.Err() == nil {
			s.logger.Warn("change feed closed, comments no longer refresh on change", zap.String("blog_id", blogID))
		}
	}()
	return nil
}

// Unwatch stops the change feed and waits for its loop to exit.
func (s *Store) Unwatch() {
	s.mu.Lock()
	cancel, done := s.watchCancel, s.watchDone
	s.watchCancel, s.watchDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// ---- snapshots ----

func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Store) Feed() []Blog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Blog(nil), s.feed...)
}

func (s *Store) MyPosts() MyPosts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MyPosts{
		Blogs:      append([]Blog(nil), s.mine...),
		Page:       s.pager.Page(),
		PageSize:   s.pager.PageSize(),
		Total:      s.pager.Total(),
		TotalPages: s.pager.TotalPages(),
		Search:     s.pager.SearchTerm(),
	}
}

func (s *Store) Post() *Blog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.post
}

// Comments returns a deep copy of the open thread.
func (s *Store) Comments() comments.Forest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.Clone()
}
