package preview

import (
	"context"
	"sync"

	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/pkg/metrics"
)

// Coordinator owns the current Handle of one editing session and applies
// resyncs to it with latest-wins semantics: every Submit is numbered, a new
// Submit cancels the one in flight, and only the response of the most
// recently issued request may replace the displayed preview.
type Coordinator struct {
	syncer *Synchronizer

	mu     sync.Mutex
	handle Handle
	seq    uint64
	cancel context.CancelFunc
}

func NewCoordinator(s *Synchronizer) *Coordinator {
	return &Coordinator{syncer: s}
}

// Store returns the store previews are materialized in.
func (c *Coordinator) Store() resource.Store { return c.syncer.store }

// Handle returns the current handle.
func (c *Coordinator) Handle() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Reset installs the handle of a newly uploaded document. Resources of the
// previous document are released and any in-flight resync is dropped.
func (c *Coordinator) Reset(ctx context.Context, h Handle) {
	c.mu.Lock()
	old := c.handle
	c.handle = h
	c.supersedeLocked()
	c.mu.Unlock()
	c.syncer.release(ctx, old.Original, old.Modified)
}

// Close releases every resource held and drops in-flight work.
func (c *Coordinator) Close(ctx context.Context) {
	c.Reset(ctx, Handle{})
}

// supersedeLocked invalidates the in-flight request, if any.
func (c *Coordinator) supersedeLocked() uint64 {
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return c.seq
}

// Reserve numbers the next resync and supersedes the one in flight. Callers
// that derive the ledger under their own lock reserve while holding it, so
// request order matches ledger order.
func (c *Coordinator) Reserve() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.supersedeLocked()
}

// Submit reserves a number and resyncs the preview with led.
func (c *Coordinator) Submit(ctx context.Context, led ledger.Ledger) (Handle, error) {
	return c.SubmitReserved(ctx, c.Reserve(), led)
}

// SubmitReserved resyncs the preview with led under the number seq. It
// returns ErrSuperseded when a newer reservation or Reset exists before or
// after the render; the caller then has nothing to apply.
func (c *Coordinator) SubmitReserved(ctx context.Context, seq uint64, led ledger.Ledger) (Handle, error) {
	c.mu.Lock()
	if seq != c.seq {
		h := c.handle
		c.mu.Unlock()
		metrics.ResyncTotal.WithLabelValues("superseded").Inc()
		return h, ErrSuperseded
	}
	if c.handle.ServerPath == "" {
		c.mu.Unlock()
		return Handle{}, ErrNoDocument
	}
	if led.IsEmpty() {
		prev := c.handle.Modified
		c.handle.Modified = ""
		h := c.handle
		c.mu.Unlock()
		c.syncer.release(ctx, prev)
		metrics.ResyncTotal.WithLabelValues("reverted").Inc()
		return h, nil
	}
	rctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	path := c.handle.ServerPath
	c.mu.Unlock()

	ref, err := c.syncer.Render(rctx, led, path)

	c.mu.Lock()
	if seq != c.seq {
		h := c.handle
		c.mu.Unlock()
		cancel()
		c.syncer.release(ctx, ref)
		metrics.ResyncTotal.WithLabelValues("superseded").Inc()
		return h, ErrSuperseded
	}
	c.cancel = nil
	cancel()
	if err != nil {
		h := c.handle
		c.mu.Unlock()
		metrics.ResyncTotal.WithLabelValues("error").Inc()
		return h, err
	}
	prev := c.handle.Modified
	c.handle.Modified = ref
	h := c.handle
	c.mu.Unlock()
	c.syncer.release(ctx, prev)
	metrics.ResyncTotal.WithLabelValues("ok").Inc()
	return h, nil
}

// Open returns the bytes of the preview currently displayed.
func (c *Coordinator) Open(ctx context.Context) ([]byte, resource.Ref, error) {
	ref := c.Handle().Display()
	if ref.IsZero() {
		return nil, "", ErrNoDocument
	}
	b, err := c.syncer.store.Open(ctx, ref)
	return b, ref, err
}
