// Package pagination tracks page, total and search term for a paginated,
// searchable list and keeps the current page inside the valid range.
package pagination

import "strings"

// DefaultPageSize 与后端列表默认每页数量一致。
const DefaultPageSize = 10

// State is not safe for concurrent use; callers hold their own lock.
type State struct {
	page     int
	pageSize int
	total    int
	search   string
}

// New returns a state on page 1. A non-positive size falls back to DefaultPageSize.
func New(pageSize int) *State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &State{page: 1, pageSize: pageSize}
}

func (s *State) Page() int          { return s.page }
func (s *State) PageSize() int      { return s.pageSize }
func (s *State) Total() int         { return s.total }
func (s *State) SearchTerm() string { return s.search }

// TotalPages is ceil(total/pageSize), never less than 1.
func (s *State) TotalPages() int {
	pages := (s.total + s.pageSize - 1) / s.pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// SetPage moves to page, clamped to [1, TotalPages()], and returns the page in effect.
func (s *State) SetPage(page int) int {
	s.page = page
	s.clamp()
	return s.page
}

// SetTotal records the count reported by the backend. It reports whether the
// current page had to move down.
func (s *State) SetTotal(total int) bool {
	if total < 0 {
		total = 0
	}
	s.total = total
	before := s.page
	s.clamp()
	return s.page != before
}

// SetSearchTerm trims term and resets to page 1 only when the effective query changes.
func (s *State) SetSearchTerm(term string) bool {
	term = strings.TrimSpace(term)
	if term == s.search {
		return false
	}
	s.search = term
	s.page = 1
	return true
}

// OnCreate 新建后回到第一页，让最新的条目可见。
func (s *State) OnCreate() {
	s.page = 1
}

// OnDelete subtracts deleted items from the total, clamps the page and returns
// the page to refetch.
func (s *State) OnDelete(deleted int) int {
	if deleted < 0 {
		deleted = 0
	}
	s.total -= deleted
	if s.total < 0 {
		s.total = 0
	}
	s.clamp()
	return s.page
}

// Range is the inclusive [start, end] row window of the current page.
func (s *State) Range() (int, int) {
	start := s.Offset()
	return start, start + s.pageSize - 1
}

// Offset is the number of rows before the current page.
func (s *State) Offset() int {
	return (s.page - 1) * s.pageSize
}

func (s *State) clamp() {
	if last := s.TotalPages(); s.page > last {
		s.page = last
	}
	if s.page < 1 {
		s.page = 1
	}
}
