package comments

import "time"

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	ID string
	// Content set to an empty string clears the text.
	Content     *string
	Image       *Image
	RemoveImage bool
	UpdatedAt   *time.Time
}

// Insert adds a copy of c to the forest. A reply goes to the end of its parent's
// replies; a reply whose parent is absent leaves the forest unchanged. A root is
// appended at the end.
func (f Forest) Insert(c Comment) Forest {
	added := c.clone()
	if added.Replies == nil {
		added.Replies = []Comment{}
	}

	if added.IsRoot() {
		out := make(Forest, len(f), len(f)+1)
		copy(out, f)
		return append(out, added)
	}

	if out, ok := insertUnder(f, *added.ParentCommentID, added); ok {
		return out
	}
	return f
}

func insertUnder(level Forest, parentID string, c Comment) (Forest, bool) {
	for i, item := range level {
		if item.ID == parentID {
			replies := make([]Comment, len(item.Replies), len(item.Replies)+1)
			copy(replies, item.Replies)
			item.Replies = append(replies, c)
			return replaceAt(level, i, item), true
		}
		if replies, ok := insertUnder(item.Replies, parentID, c); ok {
			item.Replies = replies
			return replaceAt(level, i, item), true
		}
	}
	return level, false
}

// Update merges p into the comment with id p.ID, keeping its replies.
// An unknown id leaves the forest unchanged.
func (f Forest) Update(p Patch) Forest {
	out, _ := updateIn(f, p)
	return out
}

func updateIn(level Forest, p Patch) (Forest, bool) {
	for i, item := range level {
		if item.ID == p.ID {
			return replaceAt(level, i, item.apply(p)), true
		}
		if replies, ok := updateIn(item.Replies, p); ok {
			item.Replies = replies
			return replaceAt(level, i, item), true
		}
	}
	return level, false
}

func (c Comment) apply(p Patch) Comment {
	if p.Content != nil {
		if *p.Content == "" {
			c.Content = nil
		} else {
			c.Content = cloneString(p.Content)
		}
	}
	if p.RemoveImage {
		c.Image = nil
	}
	if p.Image != nil {
		img := *p.Image
		c.Image = &img
	}
	if p.UpdatedAt != nil {
		c.UpdatedAt = *p.UpdatedAt
	}
	return c
}

// Remove drops the comment with id and its whole subtree. Levels that contain
// nothing to remove are returned as is.
func (f Forest) Remove(id string) Forest {
	out, _ := removeFrom(f, id)
	return out
}

func removeFrom(level Forest, id string) (Forest, bool) {
	changed := false
	out := make(Forest, 0, len(level))
	for _, item := range level {
		if item.ID == id {
			changed = true
			continue
		}
		if replies, ok := removeFrom(item.Replies, id); ok {
			item.Replies = replies
			changed = true
		}
		out = append(out, item)
	}
	if !changed {
		return level, false
	}
	return out, true
}

func replaceAt(level Forest, i int, c Comment) Forest {
	out := make(Forest, len(level))
	copy(out, level)
	out[i] = c
	return out
}
