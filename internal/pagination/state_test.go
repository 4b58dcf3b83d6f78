package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stateAt(total, size, page int) *State {
	s := New(size)
	s.SetTotal(total)
	s.SetPage(page)
	return s
}

func TestOnDeleteKeepsPageWhenStillPopulated(t *testing.T) {
	s := stateAt(25, 10, 3)
	assert.Equal(t, 3, s.OnDelete(1))
	assert.Equal(t, 24, s.Total())
}

func TestOnDeleteClampsEmptyLastPage(t *testing.T) {
	s := stateAt(21, 10, 3)
	assert.Equal(t, 2, s.OnDelete(1))
	assert.Equal(t, 20, s.Total())
}

func TestOnDeleteLastItemStaysOnPageOne(t *testing.T) {
	s := stateAt(1, 10, 1)
	assert.Equal(t, 1, s.OnDelete(1))
	assert.Equal(t, 0, s.Total())
	assert.Equal(t, 1, s.TotalPages())
}

func TestOnDeleteFloorsTotal(t *testing.T) {
	s := stateAt(2, 10, 1)
	s.OnDelete(5)
	assert.Equal(t, 0, s.Total())
	assert.Equal(t, 1, s.Page())
}

func TestSearchTermResetsOnlyOnChange(t *testing.T) {
	s := stateAt(50, 10, 4)
	assert.True(t, s.SetSearchTerm("go"))
	assert.Equal(t, 1, s.Page())

	s.SetPage(3)
	assert.False(t, s.SetSearchTerm("go"))
	assert.False(t, s.SetSearchTerm("  go "))
	assert.Equal(t, 3, s.Page())

	assert.True(t, s.SetSearchTerm("rust"))
	assert.Equal(t, 1, s.Page())
}

func TestOnCreateReturnsToFirstPage(t *testing.T) {
	s := stateAt(30, 10, 3)
	s.OnCreate()
	assert.Equal(t, 1, s.Page())
}

func TestSetPageClamps(t *testing.T) {
	s := stateAt(15, 10, 1)
	assert.Equal(t, 2, s.SetPage(9))
	assert.Equal(t, 1, s.SetPage(0))
}

func TestSetTotalReportsClamp(t *testing.T) {
	s := stateAt(40, 10, 4)
	assert.True(t, s.SetTotal(12))
	assert.Equal(t, 2, s.Page())
	assert.False(t, s.SetTotal(20))
}

func TestRangeAndOffset(t *testing.T) {
	s := stateAt(35, 10, 2)
	start, end := s.Range()
	assert.Equal(t, 10, start)
	assert.Equal(t, 19, end)
	assert.Equal(t, 10, s.Offset())
}

func TestNewFallsBackToDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, New(0).PageSize())
}
