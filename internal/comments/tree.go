// Package comments builds and edits the nested comment forest of a blog post.
package comments

import "time"

// Author 是评论作者的公开资料。
type Author struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Image is the single optional attachment of a comment.
type Image struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is one node of the forest. Replies is never nil.
type Comment struct {
	ID              string    `json:"id"`
	BlogID          string    `json:"blog_id"`
	UserID          string    `json:"user_id"`
	ParentCommentID *string   `json:"parent_comment_id"`
	Content         *string   `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Author          *Author   `json:"author,omitempty"`
	Image           *Image    `json:"image,omitempty"`
	Replies         []Comment `json:"replies"`
}

// IsRoot reports whether the comment is top-level.
func (c Comment) IsRoot() bool {
	return c.ParentCommentID == nil || *c.ParentCommentID == ""
}

// Forest is the ordered list of top-level comments.
type Forest []Comment

// Record is a flat comment row as fetched, ordered by created_at ascending.
type Record struct {
	ID              string
	BlogID          string
	UserID          string
	ParentCommentID *string
	Content         *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ImageRecord is a comment_images row.
type ImageRecord struct {
	ID        string
	CommentID string
	ImageURL  string
	CreatedAt time.Time
}

type node struct {
	comment Comment
	kids    []*node
}

// Assemble 将扁平的评论记录组装为森林。
// 先建立 id 索引，再按原始顺序挂接父子关系；父节点不存在的回复（孤儿）被直接丢弃。
// Records that only reach each other through a parent cycle never hang off a root and are
// dropped as well, so the result is acyclic. Duplicate image rows for one comment resolve
// to the last one.
func Assemble(records []Record, images []ImageRecord, authors []Author) Forest {
	imageByComment := make(map[string]Image, len(images))
	for _, img := range images {
		imageByComment[img.CommentID] = Image{ID: img.ID, ImageURL: img.ImageURL, CreatedAt: img.CreatedAt}
	}

	authorByID := make(map[string]Author, len(authors))
	for _, a := range authors {
		authorByID[a.ID] = a
	}

	index := make(map[string]*node, len(records))
	ordered := make([]*node, 0, len(records))
	for _, r := range records {
		if _, dup := index[r.ID]; dup {
			continue
		}
		c := Comment{
			ID:              r.ID,
			BlogID:          r.BlogID,
			UserID:          r.UserID,
			ParentCommentID: cloneString(r.ParentCommentID),
			Content:         cloneString(r.Content),
			CreatedAt:       r.CreatedAt,
			UpdatedAt:       r.UpdatedAt,
		}
		if a, ok := authorByID[r.UserID]; ok {
			author := a
			c.Author = &author
		}
		if img, ok := imageByComment[r.ID]; ok {
			image := img
			c.Image = &image
		}
		n := &node{comment: c}
		index[r.ID] = n
		ordered = append(ordered, n)
	}

	roots := make([]*node, 0)
	for _, n := range ordered {
		if n.comment.IsRoot() {
			roots = append(roots, n)
			continue
		}
		parent, ok := index[*n.comment.ParentCommentID]
		if !ok || parent == n {
			continue
		}
		parent.kids = append(parent.kids, n)
	}

	forest := make(Forest, 0, len(roots))
	for _, r := range roots {
		forest = append(forest, r.build())
	}
	return forest
}

func (n *node) build() Comment {
	c := n.comment
	c.Replies = make([]Comment, 0, len(n.kids))
	for _, k := range n.kids {
		c.Replies = append(c.Replies, k.build())
	}
	return c
}

// Find returns the comment with id anywhere in the forest.
func (f Forest) Find(id string) (Comment, bool) {
	for _, c := range f {
		if c.ID == id {
			return c, true
		}
		if found, ok := Forest(c.Replies).Find(id); ok {
			return found, true
		}
	}
	return Comment{}, false
}

// HasReplies reports whether the comment exists and has at least one reply.
func (f Forest) HasReplies(id string) bool {
	c, ok := f.Find(id)
	return ok && len(c.Replies) > 0
}

// Len counts every node in the forest.
func (f Forest) Len() int {
	total := 0
	for _, c := range f {
		total += 1 + Forest(c.Replies).Len()
	}
	return total
}

// Flatten lists every node depth-first, parents before their replies.
// The returned comments keep their Replies.
func (f Forest) Flatten() []Comment {
	out := make([]Comment, 0, f.Len())
	var walk func(Forest)
	walk = func(level Forest) {
		for _, c := range level {
			out = append(out, c)
			walk(c.Replies)
		}
	}
	walk(f)
	return out
}

// Clone deep-copies the forest.
func (f Forest) Clone() Forest {
	out := make(Forest, len(f))
	for i, c := range f {
		out[i] = c.clone()
	}
	return out
}

func (c Comment) clone() Comment {
	out := c
	out.ParentCommentID = cloneString(c.ParentCommentID)
	out.Content = cloneString(c.Content)
	if c.Author != nil {
		a := *c.Author
		out.Author = &a
	}
	if c.Image != nil {
		img := *c.Image
		out.Image = &img
	}
	out.Replies = []Comment(Forest(c.Replies).Clone())
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
