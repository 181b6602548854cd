// Package preview keeps the rendered preview of a document consistent with
// its edit ledger.
//
// Every resync is a full replace: the document service receives the whole
// grouped edit set and regenerates the preview from the original upload.
// Re-sending the same ledger therefore yields the same preview.
package preview

import (
	"context"
	"errors"

	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/pkg/logger"
)

var (
	ErrNoDocument = errors.New("no document loaded")
	ErrSuperseded = errors.New("resync superseded by a newer request")
)

// Handle pairs a server-side document with the preview resources held for
// it. Original is set once per upload; Modified tracks the ledger.
type Handle struct {
	ServerPath string       `json:"serverPath"`
	Original   resource.Ref `json:"original"`
	Modified   resource.Ref `json:"modified,omitempty"`
}

// Display is the resource that should currently be shown.
func (h Handle) Display() resource.Ref {
	if !h.Modified.IsZero() {
		return h.Modified
	}
	return h.Original
}

// TextInjector is the part of the document service a Synchronizer needs.
type TextInjector interface {
	EditText(ctx context.Context, serverPath string, edits map[int][]ledger.Placement) ([]byte, error)
}

type Synchronizer struct {
	injector TextInjector
	store    resource.Store
}

func NewSynchronizer(injector TextInjector, store resource.Store) *Synchronizer {
	return &Synchronizer{injector: injector, store: store}
}

// Store is the resource store previews are materialized in.
func (s *Synchronizer) Store() resource.Store { return s.store }

// Render sends the full ledger to the text-injection service and
// materializes the returned document. The caller owns the returned Ref.
func (s *Synchronizer) Render(ctx context.Context, led ledger.Ledger, serverPath string) (resource.Ref, error) {
	b, err := s.injector.EditText(ctx, serverPath, led.GroupByPage())
	if err != nil {
		return "", err
	}
	return s.store.Create(ctx, b)
}

// Resync brings h in line with led. An empty ledger reverts to the original
// preview. On failure h is returned unchanged together with the error; the
// ledger is never rolled back here.
func (s *Synchronizer) Resync(ctx context.Context, led ledger.Ledger, h Handle) (Handle, error) {
	if h.ServerPath == "" {
		return h, ErrNoDocument
	}
	if led.IsEmpty() {
		prev := h.Modified
		h.Modified = ""
		s.release(ctx, prev)
		return h, nil
	}
	ref, err := s.Render(ctx, led, h.ServerPath)
	if err != nil {
		return h, err
	}
	prev := h.Modified
	h.Modified = ref
	s.release(ctx, prev)
	return h, nil
}

func (s *Synchronizer) release(ctx context.Context, refs ...resource.Ref) {
	for _, r := range refs {
		if r.IsZero() {
			continue
		}
		if err := s.store.Release(ctx, r); err != nil {
			logger.Warnf("preview: release %s: %v", r, err)
		}
	}
}
