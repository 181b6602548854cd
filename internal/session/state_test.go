package session

import (
	"errors"
	"testing"

	"github.com/gogotex/pdf-annotator/internal/geometry"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/internal/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaded(t *testing.T) State {
	t.Helper()
	s := Uploaded(State{}, "a.pdf", "uploads/a.pdf", 3)
	g, err := geometry.NewPageGeometry(612, 792, 600)
	require.NoError(t, err)
	return GeometryLoaded(s, g)
}

func TestUploaded_ResetsEditingState(t *testing.T) {
	s := loaded(t)
	s, err := BeginPlacing(s, "Hello")
	require.NoError(t, err)
	s, _, err = Place(s, geometry.Point{X: 10, Y: 10}, geometry.Point{})
	require.NoError(t, err)
	s = WithMetadata(s, pdfapi.Metadata{Title: "T"})

	next := Uploaded(s, "b.pdf", "uploads/b.pdf", 1)
	assert.Equal(t, PhaseUploaded, next.Phase)
	assert.Equal(t, s.Generation+1, next.Generation)
	assert.True(t, next.Ledger.IsEmpty())
	assert.Equal(t, 1, next.Page)
	assert.False(t, next.Geometry.Ready())
	assert.Equal(t, 0, next.InFlight)
	assert.Equal(t, "T", next.Metadata.Title)
	// the old value is untouched
	assert.Equal(t, 1, s.Ledger.Len())
}

func TestPlace_Guards(t *testing.T) {
	s := loaded(t)
	_, _, err := Place(s, geometry.Point{}, geometry.Point{})
	assert.ErrorIs(t, err, ErrNotPlacing)

	_, err = BeginPlacing(s, "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = BeginPlacing(State{}, "x")
	assert.ErrorIs(t, err, ErrNoDocument)

	p, err := BeginPlacing(s, "x")
	require.NoError(t, err)
	p.Geometry = geometry.PageGeometry{}
	_, _, err = Place(p, geometry.Point{X: 1, Y: 1}, geometry.Point{})
	assert.ErrorIs(t, err, ErrGeometryNotReady)
}

func TestPlace_AppendsAndStartsSync(t *testing.T) {
	s, err := BeginPlacing(loaded(t), "Hello")
	require.NoError(t, err)
	next, e, err := Place(s, geometry.Point{X: 300, Y: 396}, geometry.Point{})
	require.NoError(t, err)

	assert.Equal(t, PhaseSyncing, next.Phase)
	assert.Equal(t, 1, next.InFlight)
	assert.Empty(t, next.PendingText)
	assert.Equal(t, 1, e.Page)
	assert.InDelta(t, 306, e.X, 0.001)
	assert.InDelta(t, 388.08, e.Y, 0.001)
	assert.Equal(t, []int{1}, next.Ledger.Pages())

	_, err = BeginPlacing(next, "again")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSyncFinished(t *testing.T) {
	s, err := BeginPlacing(loaded(t), "Hello")
	require.NoError(t, err)
	s, _, err = Place(s, geometry.Point{X: 1, Y: 1}, geometry.Point{})
	require.NoError(t, err)

	t.Run("stale generation ignored", func(t *testing.T) {
		next := SyncFinished(s, s.Generation-1, errors.New("late"))
		assert.Equal(t, s, next)
	})
	t.Run("failure is recorded", func(t *testing.T) {
		next := SyncFinished(s, s.Generation, errors.New("boom"))
		assert.Equal(t, PhasePreviewing, next.Phase)
		assert.Equal(t, "boom", next.LastError)
		assert.Equal(t, 1, next.Ledger.Len())
	})
	t.Run("superseded is silent", func(t *testing.T) {
		s2 := s
		s2.LastError = "earlier"
		next := SyncFinished(s2, s2.Generation, preview.ErrSuperseded)
		assert.Equal(t, "earlier", next.LastError)
		assert.Equal(t, 0, next.InFlight)
	})
	t.Run("success clears error", func(t *testing.T) {
		s2 := SyncStarted(s)
		s2.LastError = "earlier"
		next := SyncFinished(s2, s2.Generation, nil)
		assert.Empty(t, next.LastError)
		assert.Equal(t, PhaseSyncing, next.Phase, "one resync still in flight")
		next = SyncFinished(next, next.Generation, nil)
		assert.Equal(t, PhasePreviewing, next.Phase)
	})
}

func TestRemoved_WhilePlacingKeepsPlacementArmed(t *testing.T) {
	s, err := BeginPlacing(loaded(t), "first")
	require.NoError(t, err)
	s, first, err := Place(s, geometry.Point{X: 10, Y: 10}, geometry.Point{})
	require.NoError(t, err)
	s = SyncFinished(s, s.Generation, nil)

	s, err = BeginPlacing(s, "second")
	require.NoError(t, err)
	led, ok := s.Ledger.Remove(first.ID)
	require.True(t, ok)
	s = Removed(s, led)
	assert.Equal(t, PhaseSyncing, s.Phase)
	assert.Equal(t, "second", s.PendingText)

	s = SyncFinished(s, s.Generation, nil)
	assert.Equal(t, PhasePlacing, s.Phase)

	next, e, err := Place(s, geometry.Point{X: 20, Y: 20}, geometry.Point{})
	require.NoError(t, err)
	assert.Equal(t, "second", e.Text)
	assert.Empty(t, next.PendingText)
	assert.Equal(t, PhasePreviewing, SyncFinished(next, next.Generation, nil).Phase)
}

func TestCancelPlacing_DuringRemovalResync(t *testing.T) {
	s, err := BeginPlacing(loaded(t), "pending")
	require.NoError(t, err)
	s = Removed(s, s.Ledger)
	s = CancelPlacing(s)
	assert.Equal(t, PhaseSyncing, s.Phase)
	assert.Equal(t, PhasePreviewing, SyncFinished(s, s.Generation, nil).Phase)
}

func TestWithPage(t *testing.T) {
	s := loaded(t)
	_, err := WithPage(s, 0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = WithPage(s, 4)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	next, err := WithPage(s, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Page)
	assert.False(t, next.Geometry.Ready())
	assert.Equal(t, PhaseUploaded, next.Phase)

	same, err := WithPage(s, 1)
	require.NoError(t, err)
	assert.True(t, same.Geometry.Ready())
}

func TestCancelPlacing(t *testing.T) {
	s, err := BeginPlacing(loaded(t), "Hello")
	require.NoError(t, err)
	next := CancelPlacing(s)
	assert.Equal(t, PhasePreviewing, next.Phase)
	assert.Empty(t, next.PendingText)
	assert.True(t, next.Ledger.IsEmpty())
}

func TestPhase_MarshalText(t *testing.T) {
	b, err := PhaseSyncing.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "syncing", string(b))

	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("placing")))
	assert.Equal(t, PhasePlacing, p)
	assert.Error(t, p.UnmarshalText([]byte("nope")))
}
