package preview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInjector renders a deterministic document from the edit set.
type fakeInjector struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  map[int]chan struct{} // call number -> release signal
}

func (f *fakeInjector) EditText(ctx context.Context, serverPath string, edits map[int][]ledger.Placement) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	err := f.err
	gate := f.gate[n]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	b, _ := json.Marshal(edits)
	return append([]byte("%PDF-"+serverPath+":"), b...), nil
}

func setup(t *testing.T) (*fakeInjector, *resource.MemoryStore, *Synchronizer, Handle) {
	t.Helper()
	inj := &fakeInjector{gate: map[int]chan struct{}{}}
	store := resource.NewMemoryStore()
	orig, err := store.Create(context.Background(), []byte("%PDF-original"))
	require.NoError(t, err)
	return inj, store, NewSynchronizer(inj, store), Handle{ServerPath: "uploads/a.pdf", Original: orig}
}

func edit(t *testing.T, page int, x, y float64, text string) ledger.TextEdit {
	t.Helper()
	e, err := ledger.NewEdit(page, x, y, text)
	require.NoError(t, err)
	return e
}

func open(t *testing.T, s resource.Store, r resource.Ref) string {
	t.Helper()
	b, err := s.Open(context.Background(), r)
	require.NoError(t, err)
	return string(b)
}

func TestResync_InstallsAndIsIdempotent(t *testing.T) {
	_, store, s, h := setup(t)
	ctx := context.Background()
	led := ledger.Of(edit(t, 1, 100, 700, "Hi"))

	h1, err := s.Resync(ctx, led, h)
	require.NoError(t, err)
	require.False(t, h1.Modified.IsZero())
	assert.Equal(t, h1.Modified, h1.Display())
	first := open(t, store, h1.Modified)
	assert.Equal(t, `%PDF-uploads/a.pdf:{"1":[{"X":100,"Y":700,"NewText":"Hi"}]}`, first)

	h2, err := s.Resync(ctx, led, h1)
	require.NoError(t, err)
	assert.NotEqual(t, h1.Modified, h2.Modified)
	assert.Equal(t, first, open(t, store, h2.Modified))

	// previous modified preview released before being replaced
	_, err = store.Open(ctx, h1.Modified)
	require.ErrorIs(t, err, resource.ErrNotFound)
	assert.Equal(t, 2, store.Len())
}

func TestResync_EmptyLedgerRevertsToOriginal(t *testing.T) {
	_, store, s, h := setup(t)
	ctx := context.Background()

	h1, err := s.Resync(ctx, ledger.Of(edit(t, 1, 1, 1, "x")), h)
	require.NoError(t, err)

	h2, err := s.Resync(ctx, ledger.Of(), h1)
	require.NoError(t, err)
	assert.True(t, h2.Modified.IsZero())
	assert.Equal(t, h.Original, h2.Display())
	assert.Equal(t, 1, store.Len())

	// reverting again is harmless
	h3, err := s.Resync(ctx, ledger.Of(), h2)
	require.NoError(t, err)
	assert.Equal(t, h2, h3)
}

func TestResync_FailureKeepsLastGoodPreview(t *testing.T) {
	inj, store, s, h := setup(t)
	ctx := context.Background()
	h1, err := s.Resync(ctx, ledger.Of(edit(t, 1, 1, 1, "x")), h)
	require.NoError(t, err)

	inj.err = errors.New("boom")
	h2, err := s.Resync(ctx, ledger.Of(edit(t, 1, 1, 1, "x"), edit(t, 1, 2, 2, "y")), h1)
	require.Error(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 2, store.Len())
}

func TestResync_NoDocument(t *testing.T) {
	_, _, s, _ := setup(t)
	_, err := s.Resync(context.Background(), ledger.Of(), Handle{})
	require.ErrorIs(t, err, ErrNoDocument)
}

func TestCoordinator_LatestWins(t *testing.T) {
	inj, store, s, h := setup(t)
	ctx := context.Background()
	c := NewCoordinator(s)
	c.Reset(ctx, h)

	gate := make(chan struct{})
	inj.gate[1] = gate

	slow := ledger.Of(edit(t, 1, 1, 1, "slow"))
	fast := slow.Append(edit(t, 1, 2, 2, "fast"))

	before := testutil.ToFloat64(metrics.ResyncTotal.WithLabelValues("superseded"))

	type result struct {
		h   Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := c.Submit(ctx, slow)
		done <- result{h, err}
	}()

	// wait until the slow request reached the injector
	require.Eventually(t, func() bool {
		inj.mu.Lock()
		defer inj.mu.Unlock()
		return inj.calls == 1
	}, time.Second, 5*time.Millisecond)

	hFast, err := c.Submit(ctx, fast)
	require.NoError(t, err)

	close(gate)
	r := <-done
	require.ErrorIs(t, r.err, ErrSuperseded)

	cur := c.Handle()
	assert.Equal(t, hFast.Modified, cur.Modified)
	assert.Contains(t, open(t, store, cur.Display()), "fast")
	// the late response was materialized and released again
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ResyncTotal.WithLabelValues("superseded")))
}

func TestCoordinator_ResetReleasesPreviousDocument(t *testing.T) {
	_, store, s, h := setup(t)
	ctx := context.Background()
	c := NewCoordinator(s)
	c.Reset(ctx, h)
	_, err := c.Submit(ctx, ledger.Of(edit(t, 1, 1, 1, "x")))
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	next, err := store.Create(ctx, []byte("%PDF-next"))
	require.NoError(t, err)
	c.Reset(ctx, Handle{ServerPath: "uploads/b.pdf", Original: next})
	assert.Equal(t, 1, store.Len())

	b, ref, err := c.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, ref)
	assert.Equal(t, "%PDF-next", string(b))

	c.Close(ctx)
	assert.Equal(t, 0, store.Len())
	_, err = c.Submit(ctx, ledger.Of(edit(t, 1, 1, 1, "x")))
	require.ErrorIs(t, err, ErrNoDocument)
}

func TestCoordinator_FailureReportsAndKeepsPreview(t *testing.T) {
	inj, store, s, h := setup(t)
	ctx := context.Background()
	c := NewCoordinator(s)
	c.Reset(ctx, h)

	inj.err = errors.New("service down")
	got, err := c.Submit(ctx, ledger.Of(edit(t, 1, 1, 1, "x")))
	require.EqualError(t, err, "service down")
	assert.Equal(t, h, got)
	assert.Equal(t, 1, store.Len())
}

func TestCoordinator_ReservationOrderDecides(t *testing.T) {
	inj, store, s, h := setup(t)
	ctx := context.Background()
	c := NewCoordinator(s)
	c.Reset(ctx, h)

	older := ledger.Of(edit(t, 1, 1, 1, "older"))
	newer := older.Append(edit(t, 1, 2, 2, "newer"))
	first := c.Reserve()
	second := c.Reserve()

	// the newer ledger reaches the coordinator first
	hNew, err := c.SubmitReserved(ctx, second, newer)
	require.NoError(t, err)
	_, err = c.SubmitReserved(ctx, first, older)
	require.ErrorIs(t, err, ErrSuperseded)

	assert.Equal(t, hNew, c.Handle())
	assert.Contains(t, open(t, store, c.Handle().Display()), "newer")
	assert.Equal(t, 1, inj.calls)
	assert.Equal(t, 2, store.Len())
}
