package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/attachment"
	"github.com/threadlog/internal/comments"
	"github.com/threadlog/internal/realtime"
)

const genericFailure = "Something went wrong, please try again"

// HTTPGateway talks to the JSON API and keeps the session cookie in a jar.
type HTTPGateway struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
}

func NewHTTPGateway(baseURL string) (*HTTPGateway, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPGateway{
		baseURL: parsed,
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
		dialer:  &websocket.Dialer{Jar: jar, HandshakeTimeout: 10 * time.Second},
	}, nil
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL.String()+path, body)
	if err != nil {
		return apperr.Wrap(apperr.Transient, genericFailure, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Transient, genericFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.Transient, genericFailure, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e errorBody
		_ = json.Unmarshal(raw, &e)
		kind := apperr.Kind(e.Kind)
		if kind == "" {
			kind = apperr.FromStatus(resp.StatusCode)
		}
		msg := e.Error
		if msg == "" {
			msg = genericFailure
		}
		return apperr.Wrap(kind, msg, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.Transient, genericFailure, err)
	}
	return nil
}

func (g *HTTPGateway) doJSON(ctx context.Context, method, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return g.do(ctx, method, path, bytes.NewReader(raw), "application/json", out)
}

func (g *HTTPGateway) doForm(ctx context.Context, method, path string, fields url.Values, files map[string][]attachment.File, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return err
			}
		}
	}
	for field, list := range files {
		for _, f := range list {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
			h.Set("Content-Type", f.ContentType)
			part, err := w.CreatePart(h)
			if err != nil {
				return err
			}
			if _, err := part.Write(f.Data); err != nil {
				return err
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return g.do(ctx, method, path, &buf, w.FormDataContentType(), out)
}

func (g *HTTPGateway) SignUp(ctx context.Context, req SignUpRequest) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (g *HTTPGateway) SignIn(ctx context.Context, email, password string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := g.doJSON(ctx, http.MethodPost, "/api/auth/signin", in, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (g *HTTPGateway) SignOut(ctx context.Context) error {
	return g.do(ctx, http.MethodPost, "/api/auth/signout", nil, "", nil)
}

func (g *HTTPGateway) Session(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/auth/session", nil, "", &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (g *HTTPGateway) ListBlogs(ctx context.Context) ([]Blog, error) {
	var out struct {
		Blogs []Blog `json:"blogs"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/blogs", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Blogs, nil
}

func (g *HTTPGateway) GetBlog(ctx context.Context, id string) (*Blog, error) {
	var out struct {
		Blog *Blog `json:"blog"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/blogs/"+url.PathEscape(id), nil, "", &out); err != nil {
		return nil, err
	}
	return out.Blog, nil
}

func (g *HTTPGateway) ListMyBlogs(ctx context.Context, page, pageSize int, search string) (*BlogPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}
	var out BlogPage
	if err := g.do(ctx, http.MethodGet, "/api/me/blogs?"+q.Encode(), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) CreateBlog(ctx context.Context, draft BlogDraft) (*Blog, error) {
	var out struct {
		Blog *Blog `json:"blog"`
	}
	fields := url.Values{"title": {draft.Title}, "content": {draft.Content}}
	if err := g.doForm(ctx, http.MethodPost, "/api/blogs", fields, map[string][]attachment.File{"images": draft.Images}, &out); err != nil {
		return nil, err
	}
	return out.Blog, nil
}

func (g *HTTPGateway) UpdateBlog(ctx context.Context, id string, draft BlogDraft, removeImageIDs []string) (*Blog, error) {
	var out struct {
		Blog *Blog `json:"blog"`
	}
	fields := url.Values{"title": {draft.Title}, "content": {draft.Content}}
	for _, imageID := range removeImageIDs {
		fields.Add("remove_image_ids", imageID)
	}
	if err := g.doForm(ctx, http.MethodPut, "/api/blogs/"+url.PathEscape(id), fields, map[string][]attachment.File{"images": draft.Images}, &out); err != nil {
		return nil, err
	}
	return out.Blog, nil
}

func (g *HTTPGateway) DeleteBlog(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/api/blogs/"+url.PathEscape(id), nil, "", nil)
}

func (g *HTTPGateway) ListComments(ctx context.Context, blogID string) (comments.Forest, error) {
	var out struct {
		Comments comments.Forest `json:"comments"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/blogs/"+url.PathEscape(blogID)+"/comments", nil, "", &out); err != nil {
		return nil, err
	}
	if out.Comments == nil {
		out.Comments = comments.Forest{}
	}
	return out.Comments, nil
}

func (g *HTTPGateway) CreateComment(ctx context.Context, blogID string, draft CommentDraft) (*comments.Comment, error) {
	var out struct {
		Comment *comments.Comment `json:"comment"`
	}
	fields := url.Values{"content": {draft.Content}}
	if draft.ParentCommentID != "" {
		fields.Set("parent_comment_id", draft.ParentCommentID)
	}
	files := map[string][]attachment.File{}
	if draft.Image != nil {
		files["image"] = []attachment.File{*draft.Image}
	}
	if err := g.doForm(ctx, http.MethodPost, "/api/blogs/"+url.PathEscape(blogID)+"/comments", fields, files, &out); err != nil {
		return nil, err
	}
	return out.Comment, nil
}

func (g *HTTPGateway) UpdateComment(ctx context.Context, id string, edit CommentEdit) (*comments.Comment, error) {
	var out struct {
		Comment *comments.Comment `json:"comment"`
	}
	fields := url.Values{}
	if edit.Content != nil {
		fields.Set("content", *edit.Content)
	}
	if edit.RemoveImage {
		fields.Set("remove_image", "true")
	}
	files := map[string][]attachment.File{}
	if edit.Image != nil {
		files["image"] = []attachment.File{*edit.Image}
	}
	if err := g.doForm(ctx, http.MethodPut, "/api/comments/"+url.PathEscape(id), fields, files, &out); err != nil {
		return nil, err
	}
	return out.Comment, nil
}

func (g *HTTPGateway) DeleteComment(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/api/comments/"+url.PathEscape(id), nil, "", nil)
}

// Watch 建立 websocket 连接，把收到的变更事件转发到返回的 channel。
func (g *HTTPGateway) Watch(ctx context.Context, blogID string) (<-chan realtime.Event, error) {
	wsURL := *g.baseURL
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/api/blogs/" + url.PathEscape(blogID) + "/changes"

	conn, resp, err := g.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, apperr.Wrap(apperr.FromStatus(resp.StatusCode), genericFailure, err)
		}
		return nil, apperr.Wrap(apperr.Transient, genericFailure, err)
	}

	events := make(chan realtime.Event, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		for {
			var ev realtime.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
