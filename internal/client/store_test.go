package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/attachment"
	"github.com/threadlog/internal/comments"
	"github.com/threadlog/internal/realtime"
)

// fakeGateway serves a fixed in-memory dataset and records calls.
type fakeGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	blogs    []Blog
	forests  map[string]comments.Forest
	gates    map[string]chan struct{}
	events   chan realtime.Event
	failWith error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:   map[string]int{},
		forests: map[string]comments.Forest{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakeGateway) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.failWith
}

func (f *fakeGateway) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeGateway) SignUp(_ context.Context, req SignUpRequest) (*User, error) {
	if err := f.record("SignUp"); err != nil {
		return nil, err
	}
	return &User{ID: "u1", Email: req.Email}, nil
}

func (f *fakeGateway) SignIn(_ context.Context, email, _ string) (*User, error) {
	if err := f.record("SignIn"); err != nil {
		return nil, err
	}
	return &User{ID: "u1", Email: email}, nil
}

func (f *fakeGateway) SignOut(context.Context) error { return f.record("SignOut") }

func (f *fakeGateway) Session(context.Context) (*User, error) {
	if err := f.record("Session"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeGateway) ListBlogs(context.Context) ([]Blog, error) {
	if err := f.record("ListBlogs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Blog(nil), f.blogs...), nil
}

func (f *fakeGateway) GetBlog(_ context.Context, id string) (*Blog, error) {
	if err := f.record("GetBlog"); err != nil {
		return nil, err
	}
	return &Blog{ID: id, Title: "Post " + id}, nil
}

func (f *fakeGateway) ListMyBlogs(_ context.Context, page, pageSize int, search string) (*BlogPage, error) {
	if err := f.record("ListMyBlogs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := []Blog{}
	for _, b := range f.blogs {
		if strings.Contains(strings.ToLower(b.Title), strings.ToLower(search)) {
			matched = append(matched, b)
		}
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	return &BlogPage{Blogs: matched[start:end], Total: len(matched)}, nil
}

func (f *fakeGateway) CreateBlog(_ context.Context, draft BlogDraft) (*Blog, error) {
	if err := f.record("CreateBlog"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	blog := Blog{ID: fmt.Sprintf("b%d", len(f.blogs)+1), Title: draft.Title, Content: draft.Content}
	f.blogs = append([]Blog{blog}, f.blogs...)
	return &blog, nil
}

func (f *fakeGateway) UpdateBlog(_ context.Context, id string, draft BlogDraft, _ []string) (*Blog, error) {
	if err := f.record("UpdateBlog"); err != nil {
		return nil, err
	}
	return &Blog{ID: id, Title: draft.Title, Content: draft.Content}, nil
}

func (f *fakeGateway) DeleteBlog(_ context.Context, id string) error {
	if err := f.record("DeleteBlog"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blogs = withoutBlog(f.blogs, id)
	return nil
}

func (f *fakeGateway) ListComments(ctx context.Context, blogID string) (comments.Forest, error) {
	if err := f.record("ListComments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	gate := f.gates[blogID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forests[blogID].Clone(), nil
}

func (f *fakeGateway) CreateComment(_ context.Context, blogID string, draft CommentDraft) (*comments.Comment, error) {
	if err := f.record("CreateComment"); err != nil {
		return nil, err
	}
	c := comments.Comment{ID: fmt.Sprintf("c%d", f.count("CreateComment")), BlogID: blogID, Content: &draft.Content, Replies: []comments.Comment{}}
	if draft.ParentCommentID != "" {
		parent := draft.ParentCommentID
		c.ParentCommentID = &parent
	}
	return &c, nil
}

func (f *fakeGateway) UpdateComment(_ context.Context, id string, edit CommentEdit) (*comments.Comment, error) {
	if err := f.record("UpdateComment"); err != nil {
		return nil, err
	}
	return &comments.Comment{ID: id, Content: edit.Content, UpdatedAt: time.Now()}, nil
}

func (f *fakeGateway) DeleteComment(context.Context, string) error {
	return f.record("DeleteComment")
}

func (f *fakeGateway) Watch(ctx context.Context, _ string) (<-chan realtime.Event, error) {
	if err := f.record("Watch"); err != nil {
		return nil, err
	}
	out := make(chan realtime.Event)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-f.events:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func text(s string) *string { return &s }

func reply(id, parent string) comments.Comment {
	c := comments.Comment{ID: id, Content: text(id), Replies: []comments.Comment{}}
	if parent != "" {
		c.ParentCommentID = text(parent)
	}
	return c
}

func blogsNamed(n int, prefix string) []Blog {
	out := make([]Blog, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Blog{ID: fmt.Sprintf("%s-%d", prefix, i), Title: fmt.Sprintf("%s %d", prefix, i)})
	}
	return out
}

func TestSignUpRejectsMismatchedPasswordsLocally(t *testing.T) {
	gw := newFakeGateway()
	store := NewStore(gw)

	err := store.SignUp(context.Background(), SignUpRequest{Email: "a@example.com", Password: "one", ConfirmPassword: "two"})
	require.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Zero(t, gw.count("SignUp"))

	require.NoError(t, store.SignUp(context.Background(), SignUpRequest{Email: "a@example.com", Password: "one", ConfirmPassword: "one"}))
	require.NotNil(t, store.User())
	assert.Equal(t, "a@example.com", store.User().Email)

	require.NoError(t, store.SignOut(context.Background()))
	assert.Nil(t, store.User())
}

func TestDeleteCommentWithRepliesNeverCallsGateway(t *testing.T) {
	gw := newFakeGateway()
	parent := reply("a", "")
	parent.Replies = []comments.Comment{reply("b", "a")}
	gw.forests["blog"] = comments.Forest{parent}

	store := NewStore(gw)
	require.NoError(t, store.OpenComments(context.Background(), "blog"))

	err := store.DeleteComment(context.Background(), "a")
	require.ErrorIs(t, err, comments.ErrHasReplies)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Zero(t, gw.count("DeleteComment"))

	require.NoError(t, store.DeleteComment(context.Background(), "b"))
	assert.Equal(t, 1, gw.count("DeleteComment"))
	forest := store.Comments()
	require.Len(t, forest, 1)
	assert.Empty(t, forest[0].Replies)
}

func TestCommentValidationHappensBeforeRequests(t *testing.T) {
	gw := newFakeGateway()
	store := NewStore(gw, WithLimits(Limits{BlogImageMaxBytes: 10, CommentImageMaxBytes: 10}))

	_, err := store.CreateComment(context.Background(), "blog", CommentDraft{Content: "   "})
	require.ErrorIs(t, err, comments.ErrEmpty)

	big := &attachment.File{Name: "big.png", ContentType: "image/png", Size: 11, Data: make([]byte, 11)}
	_, err = store.CreateComment(context.Background(), "blog", CommentDraft{Content: "hi", Image: big})
	require.ErrorIs(t, err, attachment.ErrFileTooLarge)

	_, err = store.CreatePost(context.Background(), BlogDraft{Title: "t", Content: "c", Images: []attachment.File{*big}})
	require.ErrorIs(t, err, attachment.ErrFileTooLarge)

	assert.Zero(t, gw.count("CreateComment"))
	assert.Zero(t, gw.count("CreateBlog"))
}

func TestUpdateCommentRejectsClearingEverything(t *testing.T) {
	gw := newFakeGateway()
	gw.forests["blog"] = comments.Forest{reply("a", "")}
	store := NewStore(gw)
	require.NoError(t, store.OpenComments(context.Background(), "blog"))

	_, err := store.UpdateComment(context.Background(), "a", CommentEdit{Content: text("")})
	require.ErrorIs(t, err, comments.ErrEmpty)
	assert.Zero(t, gw.count("UpdateComment"))

	_, err = store.UpdateComment(context.Background(), "a", CommentEdit{Content: text("edited")})
	require.NoError(t, err)
	found, ok := store.Comments().Find("a")
	require.True(t, ok)
	assert.Equal(t, "edited", *found.Content)
}

func TestCreateCommentMergesIntoOpenThread(t *testing.T) {
	gw := newFakeGateway()
	gw.forests["blog"] = comments.Forest{reply("a", "")}
	store := NewStore(gw)
	require.NoError(t, store.OpenComments(context.Background(), "blog"))

	created, err := store.CreateComment(context.Background(), "blog", CommentDraft{Content: "hello", ParentCommentID: "a"})
	require.NoError(t, err)

	forest := store.Comments()
	require.Len(t, forest, 1)
	require.Len(t, forest[0].Replies, 1)
	assert.Equal(t, created.ID, forest[0].Replies[0].ID)

	// a comment on another thread does not touch the open one
	_, err = store.CreateComment(context.Background(), "other", CommentDraft{Content: "elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Comments().Len())
}

func TestStaleCommentFetchIsDiscarded(t *testing.T) {
	gw := newFakeGateway()
	gw.forests["slow"] = comments.Forest{reply("s", "")}
	gw.forests["fast"] = comments.Forest{reply("f", "")}
	gate := make(chan struct{})
	gw.gates["slow"] = gate

	store := NewStore(gw)
	slowDone := make(chan error, 1)
	go func() { slowDone <- store.OpenComments(context.Background(), "slow") }()

	require.Eventually(t, func() bool { return gw.count("ListComments") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, store.OpenComments(context.Background(), "fast"))

	close(gate)
	require.NoError(t, <-slowDone)

	forest := store.Comments()
	require.Len(t, forest, 1)
	assert.Equal(t, "f", forest[0].ID)
}

func TestChangeEventTriggersRefetch(t *testing.T) {
	gw := newFakeGateway()
	gw.events = make(chan realtime.Event)
	gw.forests["blog"] = comments.Forest{reply("a", "")}

	store := NewStore(gw)
	t.Cleanup(store.Close)
	require.NoError(t, store.OpenComments(context.Background(), "blog"))
	require.NoError(t, store.Watch(context.Background(), "blog"))

	gw.mu.Lock()
	gw.forests["blog"] = comments.Forest{reply("a", ""), reply("z", "")}
	gw.mu.Unlock()

	gw.events <- realtime.Event{Table: realtime.TableComments, Type: realtime.EventInsert, BlogID: "blog", RecordID: "z"}

	assert.Eventually(t, func() bool { return store.Comments().Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, gw.count("ListComments"))
}

func TestDeletePostClampsPageAndRefetches(t *testing.T) {
	gw := newFakeGateway()
	gw.blogs = blogsNamed(21, "post")
	store := NewStore(gw, WithPageSize(10))

	require.NoError(t, store.LoadMyPosts(context.Background()))
	require.NoError(t, store.SetPage(context.Background(), 3))
	mine := store.MyPosts()
	assert.Equal(t, 3, mine.Page)
	assert.Equal(t, 21, mine.Total)
	require.Len(t, mine.Blogs, 1)

	require.NoError(t, store.DeletePost(context.Background(), mine.Blogs[0].ID))
	mine = store.MyPosts()
	assert.Equal(t, 2, mine.Page)
	assert.Equal(t, 20, mine.Total)
	assert.Len(t, mine.Blogs, 10)
}

func TestCreatePostReturnsToFirstPage(t *testing.T) {
	gw := newFakeGateway()
	gw.blogs = blogsNamed(25, "post")
	store := NewStore(gw, WithPageSize(10))

	require.NoError(t, store.LoadMyPosts(context.Background()))
	require.NoError(t, store.SetPage(context.Background(), 3))
	created, err := store.CreatePost(context.Background(), BlogDraft{Title: "Fresh", Content: "Body"})
	require.NoError(t, err)

	mine := store.MyPosts()
	assert.Equal(t, 1, mine.Page)
	assert.Equal(t, 26, mine.Total)
	assert.Equal(t, created.ID, mine.Blogs[0].ID)
}

func TestLoadMyPostsFollowsShrunkTotal(t *testing.T) {
	gw := newFakeGateway()
	gw.blogs = blogsNamed(30, "post")
	store := NewStore(gw, WithPageSize(10))
	require.NoError(t, store.LoadMyPosts(context.Background()))
	require.NoError(t, store.SetPage(context.Background(), 3))

	gw.mu.Lock()
	gw.blogs = gw.blogs[:12]
	gw.mu.Unlock()

	require.NoError(t, store.LoadMyPosts(context.Background()))
	mine := store.MyPosts()
	assert.Equal(t, 2, mine.Page)
	assert.Len(t, mine.Blogs, 2)
}

func TestSearchInputIsDebounced(t *testing.T) {
	gw := newFakeGateway()
	gw.blogs = append(blogsNamed(12, "go"), blogsNamed(3, "rust")...)
	store := NewStore(gw, WithPageSize(10), WithDebounce(20*time.Millisecond))
	t.Cleanup(store.Close)

	require.NoError(t, store.LoadMyPosts(context.Background()))
	require.NoError(t, store.SetPage(context.Background(), 2))
	before := gw.count("ListMyBlogs")

	done := make(chan error, 1)
	for _, term := range []string{"r", "ru", "rus"} {
		store.SearchInput(context.Background(), term, func(err error) { done <- err })
	}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("debounced search never fired")
	}

	assert.Equal(t, before+1, gw.count("ListMyBlogs"))
	mine := store.MyPosts()
	assert.Equal(t, "rus", mine.Search)
	assert.Equal(t, 1, mine.Page)
	assert.Equal(t, 3, mine.Total)

	// the same term again keeps the page and sends nothing
	require.NoError(t, store.SetSearchTerm(context.Background(), " rus "))
	assert.Equal(t, before+1, gw.count("ListMyBlogs"))
}

func TestGatewayErrorsAreReturned(t *testing.T) {
	gw := newFakeGateway()
	gw.failWith = apperr.New(apperr.Transient, "Something went wrong, please try again")
	store := NewStore(gw)

	err := store.LoadFeed(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.Transient, apperr.KindOf(err))
	assert.Empty(t, store.Feed())
}

// echoingGateway finishes a change-feed refetch of the thread before the create
// call returns, the way the server publishes before it responds.
type echoingGateway struct {
	*fakeGateway
	store *Store
}

func (g *echoingGateway) CreateComment(ctx context.Context, blogID string, draft CommentDraft) (*comments.Comment, error) {
	created, err := g.fakeGateway.CreateComment(ctx, blogID, draft)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.forests[blogID] = g.forests[blogID].Insert(*created)
	g.mu.Unlock()
	if err := g.store.OpenComments(ctx, blogID); err != nil {
		return nil, err
	}
	return created, nil
}

func TestCreateCommentAfterRefetchDoesNotDuplicate(t *testing.T) {
	fake := newFakeGateway()
	fake.forests["blog"] = comments.Forest{reply("a", "")}
	gw := &echoingGateway{fakeGateway: fake}
	store := NewStore(gw)
	gw.store = store
	require.NoError(t, store.OpenComments(context.Background(), "blog"))

	root, err := store.CreateComment(context.Background(), "blog", CommentDraft{Content: "root"})
	require.NoError(t, err)
	replyTo, err := store.CreateComment(context.Background(), "blog", CommentDraft{Content: "reply", ParentCommentID: "a"})
	require.NoError(t, err)

	var ids []string
	for _, c := range store.Comments().Flatten() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", replyTo.ID, root.ID}, ids)
}

func TestClosedChangeFeedIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	gw := newFakeGateway()
	gw.events = make(chan realtime.Event)
	store := NewStore(gw, WithLogger(zap.New(core)))
	t.Cleanup(store.Close)

	require.NoError(t, store.OpenComments(context.Background(), "blog"))
	require.NoError(t, store.Watch(context.Background(), "blog"))
	close(gw.events)

	assert.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("change feed closed").Len() == 1
	}, time.Second, 5*time.Millisecond)

	store.Unwatch()
	assert.Equal(t, 1, logs.FilterMessageSnippet("change feed closed").Len())
}
