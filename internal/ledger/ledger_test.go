package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEdit(t *testing.T, page int, x, y float64, text string) TextEdit {
	t.Helper()
	e, err := NewEdit(page, x, y, text)
	require.NoError(t, err)
	return e
}

func TestNewEdit_Validation(t *testing.T) {
	_, err := NewEdit(0, 1, 1, "x")
	require.ErrorIs(t, err, ErrInvalidPage)
	_, err = NewEdit(1, 1, 1, "   \t")
	require.ErrorIs(t, err, ErrEmptyText)

	a := mustEdit(t, 1, 1, 1, "x")
	b := mustEdit(t, 1, 1, 1, "x")
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID, "identical placements still get distinct ids")
}

func TestAppend_DoesNotMutatePrior(t *testing.T) {
	l0 := Of()
	l1 := l0.Append(mustEdit(t, 1, 10, 20, "a"))
	l2 := l1.Append(mustEdit(t, 2, 30, 40, "b"))
	l1b := l1.Append(mustEdit(t, 3, 50, 60, "c"))

	assert.Equal(t, 0, l0.Len())
	assert.Equal(t, 1, l1.Len())
	assert.Equal(t, 2, l2.Len())
	assert.Equal(t, "b", l2.Edits()[1].Text)
	assert.Equal(t, "c", l1b.Edits()[1].Text, "appending to a shared prefix must not clobber siblings")
}

func TestEdits_ReturnsCopy(t *testing.T) {
	l := Of(mustEdit(t, 1, 1, 1, "a"))
	got := l.Edits()
	got[0].Text = "changed"
	assert.Equal(t, "a", l.Edits()[0].Text)
}

func TestAppendThenRemove_RoundTrip(t *testing.T) {
	base := Of(mustEdit(t, 1, 10, 20, "a"), mustEdit(t, 2, 30, 40, "b"))
	e := mustEdit(t, 1, 100, 700, "Hi")

	byID, ok := base.Append(e).Remove(e.ID)
	require.True(t, ok)
	assert.Equal(t, base.Edits(), byID.Edits())

	byMatch, ok := base.Append(e).RemoveMatch(1, 100, 700, "Hi")
	require.True(t, ok)
	assert.Equal(t, base.Edits(), byMatch.Edits())
}

func TestRemove_Missing(t *testing.T) {
	l := Of(mustEdit(t, 1, 1, 1, "a"))
	out, ok := l.Remove("nope")
	assert.False(t, ok)
	assert.Equal(t, l.Edits(), out.Edits())

	_, ok = l.RemoveMatch(2, 1, 1, "a")
	assert.False(t, ok)
}

func TestRemoveMatch_DuplicatesRemoveFirstOnPage(t *testing.T) {
	first := mustEdit(t, 1, 5, 5, "dup")
	other := mustEdit(t, 2, 5, 5, "dup")
	second := mustEdit(t, 1, 5, 5, "dup")
	l := Of(other, first, second)

	out, ok := l.RemoveMatch(1, 5, 5, "dup")
	require.True(t, ok)
	require.Equal(t, 2, out.Len())
	_, stillThere := out.Get(second.ID)
	_, gone := out.Get(first.ID)
	assert.True(t, stillThere)
	assert.False(t, gone)
	_, otherKept := out.Get(other.ID)
	assert.True(t, otherKept)
}

func TestRemoveAt_IndexesPageProjection(t *testing.T) {
	p1a := mustEdit(t, 1, 1, 1, "p1a")
	p2a := mustEdit(t, 2, 1, 1, "p2a")
	p1b := mustEdit(t, 1, 2, 2, "p1b")
	l := Of(p1a, p2a, p1b)

	// index 1 on page 2 does not exist even though the global index does
	_, _, ok := l.RemoveAt(2, 1)
	assert.False(t, ok)

	out, removed, ok := l.RemoveAt(1, 1)
	require.True(t, ok)
	assert.Equal(t, p1b.ID, removed.ID)
	assert.Equal(t, []TextEdit{p1a, p2a}, out.Edits())

	_, _, ok = l.RemoveAt(1, -1)
	assert.False(t, ok)
}

func TestProjectByPage_StableOrder(t *testing.T) {
	a := mustEdit(t, 1, 1, 1, "a")
	b := mustEdit(t, 2, 1, 1, "b")
	c := mustEdit(t, 1, 1, 1, "c")
	l := Of(a, b, c)
	assert.Equal(t, []TextEdit{a, c}, l.ProjectByPage(1))
	assert.Equal(t, []TextEdit{b}, l.ProjectByPage(2))
	assert.Empty(t, l.ProjectByPage(3))
}

func TestGroupByPage_SingleEdit(t *testing.T) {
	l := Of(mustEdit(t, 1, 100, 700, "Hi"))
	assert.Equal(t, map[int][]Placement{1: {{X: 100, Y: 700, NewText: "Hi"}}}, l.GroupByPage())
}

func TestGroupByPage_Rounds(t *testing.T) {
	l := Of(
		mustEdit(t, 1, 305.9999, 388.08, "a"),
		mustEdit(t, 1, 10.5, 10.49, "b"),
	)
	got := l.GroupByPage()[1]
	assert.Equal(t, Placement{X: 306, Y: 388, NewText: "a"}, got[0])
	assert.Equal(t, Placement{X: 11, Y: 10, NewText: "b"}, got[1])
}

func TestGroupByPage_PartitionReconstructsLedger(t *testing.T) {
	l := Of(
		mustEdit(t, 3, 1, 1, "a"),
		mustEdit(t, 1, 2, 2, "b"),
		mustEdit(t, 3, 3, 3, "c"),
		mustEdit(t, 2, 4, 4, "d"),
		mustEdit(t, 1, 5, 5, "e"),
	)
	groups := l.GroupByPage()
	require.Len(t, groups, 3)

	total := 0
	for page, ps := range groups {
		proj := l.ProjectByPage(page)
		require.Len(t, ps, len(proj))
		for i := range ps {
			assert.Equal(t, proj[i].Placement(), ps[i])
		}
		total += len(ps)
	}
	assert.Equal(t, l.Len(), total)
	assert.Equal(t, []int{1, 2, 3}, l.Pages())
}
