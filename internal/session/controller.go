package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogotex/pdf-annotator/internal/docclient"
	"github.com/gogotex/pdf-annotator/internal/geometry"
	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/internal/preview"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/pkg/logger"
)

// Download file names produced by the export operations.
const (
	NameEdited             = "edited.pdf"
	NameEditedWithMetadata = "edited-with-metadata.pdf"
	nameFlushedForMetadata = "edited-with-text.pdf"
	nameFlushedForExport   = "edited-for-export.pdf"
)

// DocumentService is the remote document-processing collaborator.
type DocumentService interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
	Preview(ctx context.Context, serverPath string) ([]byte, error)
	EditText(ctx context.Context, serverPath string, edits map[int][]ledger.Placement) ([]byte, error)
	EditMetadata(ctx context.Context, serverPath string, md pdfapi.Metadata) ([]byte, error)
	Export(ctx context.Context, serverPath string, format pdfapi.Format) ([]byte, error)
}

// Download is a finished export ready to be saved by the user.
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Options struct {
	// DisplayWidth is the pixel width pages are rendered at.
	DisplayWidth float64
}

// Controller owns one editing session: its State, its preview resources and
// the calls made to the document service on its behalf.
type Controller struct {
	svc          DocumentService
	coord        *preview.Coordinator
	displayWidth float64

	mu     sync.Mutex
	state  State
	closed bool
}

func NewController(svc DocumentService, store resource.Store, opts Options) *Controller {
	if opts.DisplayWidth <= 0 {
		opts.DisplayWidth = geometry.DefaultDisplayWidth
	}
	return &Controller{
		svc:          svc,
		coord:        preview.NewCoordinator(preview.NewSynchronizer(svc, store)),
		displayWidth: opts.DisplayWidth,
	}
}

// CheckPDF rejects input that is not a PDF before anything is sent out.
func CheckPDF(name string, data []byte) error {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && ext != ".pdf" {
		return ErrNotPDF
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return ErrNotPDF
	}
	return nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handle returns the current document handle.
func (c *Controller) Handle() preview.Handle {
	return c.coord.Handle()
}

// opError is a failed remote step. Its text is the action followed by the
// message the service gave, which is what the UI shows.
type opError struct {
	action string
	err    error
}

func (e *opError) Error() string { return e.action + ": " + docclient.Message(e.err) }

func (e *opError) Unwrap() error { return e.err }

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.state.LastError = err.Error()
	c.mu.Unlock()
	return err
}

// Upload sends a new document to the service and starts a fresh session on
// it. Whatever was loaded before is torn down only once the new document is
// available; on failure the previous session stays as it was.
func (c *Controller) Upload(ctx context.Context, name string, data []byte) error {
	if err := CheckPDF(name, data); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	path, err := c.svc.Upload(ctx, name, data)
	if err != nil {
		return c.fail(&opError{"failed to load PDF", err})
	}
	// The service has no delete route, so an upload whose preview cannot be
	// fetched stays behind on the server. Nothing local is held yet.
	pdf, err := c.svc.Preview(ctx, path)
	if err != nil {
		return c.fail(&opError{"failed to load PDF", err})
	}
	ref, err := c.coord.Store().Create(ctx, pdf)
	if err != nil {
		return c.fail(&opError{"failed to load PDF", err})
	}

	numPages, err := geometry.PageCount(pdf)
	if err != nil {
		logger.Warnf("session: page count of %s: %v", path, err)
	}
	g, gerr := geometry.FromPDF(pdf, 1, c.displayWidth)
	if gerr != nil {
		logger.Warnf("session: geometry of %s page 1: %v", path, gerr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Close may have run while the service was working.
	if c.closed {
		if err := c.coord.Store().Release(ctx, ref); err != nil {
			logger.Warnf("session: release preview of closed session: %v", err)
		}
		return ErrClosed
	}
	c.state = Uploaded(c.state, name, path, numPages)
	if gerr == nil {
		c.state = GeometryLoaded(c.state, g)
	}
	c.coord.Reset(ctx, preview.Handle{ServerPath: path, Original: ref})
	logger.Infof("session: loaded %s as %s (%d pages)", name, path, numPages)
	return nil
}

// SetPage navigates to page and loads its geometry from the preview.
func (c *Controller) SetPage(ctx context.Context, page int) error {
	c.mu.Lock()
	next, err := WithPage(c.state, page)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()

	pdf, _, err := c.coord.Open(ctx)
	if err != nil {
		logger.Warnf("session: open preview for page %d: %v", page, err)
		return nil
	}
	g, err := geometry.FromPDF(pdf, page, c.displayWidth)
	if err != nil {
		logger.Warnf("session: geometry of page %d: %v", page, err)
		return nil
	}
	c.mu.Lock()
	if c.state.Page == page && c.state.Generation == next.Generation {
		c.state = GeometryLoaded(c.state, g)
	}
	c.mu.Unlock()
	return nil
}

// SetPageGeometry records the natural page size reported by a renderer.
func (c *Controller) SetPageGeometry(naturalWidth, naturalHeight float64) (geometry.PageGeometry, error) {
	g, err := geometry.NewPageGeometry(naturalWidth, naturalHeight, c.displayWidth)
	if err != nil {
		return g, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.hasDocument() {
		return g, ErrNoDocument
	}
	c.state = GeometryLoaded(c.state, g)
	return g, nil
}

func (c *Controller) BeginPlacing(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := BeginPlacing(c.state, text)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) CancelPlacing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CancelPlacing(c.state)
}

// Place turns a click on the rendered page into an edit and resyncs the
// preview. If the resync fails the edit stays in the ledger and the last
// good preview stays displayed; the returned error says so.
func (c *Controller) Place(ctx context.Context, click, origin geometry.Point) (ledger.TextEdit, error) {
	c.mu.Lock()
	next, e, err := Place(c.state, click, origin)
	if err != nil {
		c.mu.Unlock()
		return e, err
	}
	c.state = next
	seq := c.coord.Reserve()
	c.mu.Unlock()

	return e, c.resync(ctx, seq, next, "failed to apply text edit")
}

// RemoveEdit drops the edit with the given id and resyncs, reverting to the
// original preview when no edits remain.
func (c *Controller) RemoveEdit(ctx context.Context, id string) error {
	return c.remove(ctx, func(l ledger.Ledger) (ledger.Ledger, bool) { return l.Remove(id) })
}

// RemoveAt drops the index-th edit listed for page.
func (c *Controller) RemoveAt(ctx context.Context, page, index int) error {
	return c.remove(ctx, func(l ledger.Ledger) (ledger.Ledger, bool) {
		out, _, ok := l.RemoveAt(page, index)
		return out, ok
	})
}

// RemoveMatch drops the first edit on page equal to (x, y, text).
func (c *Controller) RemoveMatch(ctx context.Context, page int, x, y float64, text string) error {
	return c.remove(ctx, func(l ledger.Ledger) (ledger.Ledger, bool) { return l.RemoveMatch(page, x, y, text) })
}

func (c *Controller) remove(ctx context.Context, op func(ledger.Ledger) (ledger.Ledger, bool)) error {
	c.mu.Lock()
	if !c.state.hasDocument() {
		c.mu.Unlock()
		return ErrNoDocument
	}
	led, ok := op(c.state.Ledger)
	if !ok {
		c.mu.Unlock()
		return ErrEditNotFound
	}
	next := Removed(c.state, led)
	c.state = next
	seq := c.coord.Reserve()
	c.mu.Unlock()

	return c.resync(ctx, seq, next, "failed to remove text edit")
}

// resync renders s.Ledger under seq, which the caller reserved together with
// deriving s so that the newest ledger always holds the newest number.
func (c *Controller) resync(ctx context.Context, seq uint64, s State, action string) error {
	_, err := c.coord.SubmitReserved(ctx, seq, s.Ledger)
	if errors.Is(err, preview.ErrSuperseded) {
		c.finishSync(s.Generation, err)
		return nil
	}
	if err != nil {
		err = &opError{action, err}
		logger.Warnf("session: %v", err)
	}
	c.finishSync(s.Generation, err)
	return err
}

func (c *Controller) finishSync(generation uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SyncFinished(c.state, generation, err)
}

// Edits lists the edits of page in display order; page 0 means the
// current page.
func (c *Controller) Edits(page int) []ledger.TextEdit {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page == 0 {
		page = c.state.Page
	}
	return c.state.Ledger.ProjectByPage(page)
}

func (c *Controller) SetMetadata(md pdfapi.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = WithMetadata(c.state, md)
}

// Display returns the preview currently shown: the modified one when edits
// exist, the original otherwise.
func (c *Controller) Display(ctx context.Context) ([]byte, resource.Ref, error) {
	b, ref, err := c.coord.Open(ctx)
	if errors.Is(err, preview.ErrNoDocument) {
		return nil, "", ErrNoDocument
	}
	return b, ref, err
}

// beginExport snapshots what an export works on. Exports never touch the
// live ledger or preview.
func (c *Controller) beginExport() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.hasDocument() {
		return c.state, ErrNoDocument
	}
	c.state.Exporting++
	return c.state, nil
}

func (c *Controller) endExport(generation uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Generation != generation {
		return
	}
	if c.state.Exporting > 0 {
		c.state.Exporting--
	}
	if err != nil {
		c.state.LastError = err.Error()
	}
}

// flush materializes pending edits into a new server-side document and
// returns its path; with no edits it returns the original path.
func (c *Controller) flush(ctx context.Context, s State, name string) (string, error) {
	if s.Ledger.IsEmpty() {
		return s.ServerPath, nil
	}
	b, err := c.svc.EditText(ctx, s.ServerPath, s.Ledger.GroupByPage())
	if err != nil {
		return "", err
	}
	return c.svc.Upload(ctx, name, b)
}

// ApplyEdits renders every pending edit into a downloadable PDF.
func (c *Controller) ApplyEdits(ctx context.Context) (d Download, err error) {
	s, err := c.beginExport()
	if err != nil {
		return d, err
	}
	defer func() { c.endExport(s.Generation, err) }()
	if s.Ledger.IsEmpty() {
		return d, ErrNoEdits
	}
	b, err := c.svc.EditText(ctx, s.ServerPath, s.Ledger.GroupByPage())
	if err != nil {
		return d, &opError{"text edit failed", err}
	}
	return Download{FileName: NameEdited, ContentType: contentType(pdfapi.FormatPDF), Data: b}, nil
}

// ApplyMetadata flushes pending edits, then applies the session metadata.
func (c *Controller) ApplyMetadata(ctx context.Context) (d Download, err error) {
	s, err := c.beginExport()
	if err != nil {
		return d, err
	}
	defer func() { c.endExport(s.Generation, err) }()
	path, err := c.flush(ctx, s, nameFlushedForMetadata)
	if err != nil {
		return d, &opError{"metadata update failed", err}
	}
	b, err := c.svc.EditMetadata(ctx, path, s.Metadata)
	if err != nil {
		return d, &opError{"metadata update failed", err}
	}
	return Download{FileName: NameEditedWithMetadata, ContentType: contentType(pdfapi.FormatPDF), Data: b}, nil
}

// Export flushes pending edits and converts the result to format.
func (c *Controller) Export(ctx context.Context, format pdfapi.Format) (d Download, err error) {
	format, perr := pdfapi.ParseFormat(string(format))
	if perr != nil {
		return d, fmt.Errorf("%w: %v", ErrUnknownFormat, perr)
	}
	s, err := c.beginExport()
	if err != nil {
		return d, err
	}
	defer func() { c.endExport(s.Generation, err) }()
	path, err := c.flush(ctx, s, nameFlushedForExport)
	if err != nil {
		return d, &opError{"export failed", err}
	}
	b, err := c.svc.Export(ctx, path, format)
	if err != nil {
		return d, &opError{"export failed", err}
	}
	return Download{FileName: "document." + format.Extension(), ContentType: contentType(format), Data: b}, nil
}

func contentType(f pdfapi.Format) string {
	switch f {
	case pdfapi.FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case pdfapi.FormatImages:
		return "application/zip"
	}
	return "application/pdf"
}

// Close tears the session down and releases its preview resources.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	c.state = State{Generation: c.state.Generation + 1}
	c.mu.Unlock()
	c.coord.Close(ctx)
}

// Snapshot is the JSON view of a session served to the UI.
type Snapshot struct {
	Phase         Phase                 `json:"phase"`
	FileName      string                `json:"fileName,omitempty"`
	ServerPath    string                `json:"serverPath,omitempty"`
	Page          int                   `json:"page"`
	NumPages      int                   `json:"numPages"`
	Geometry      geometry.PageGeometry `json:"geometry"`
	DisplayHeight float64               `json:"displayHeight"`
	PendingText   string                `json:"pendingText,omitempty"`
	Metadata      pdfapi.Metadata       `json:"metadata"`
	Edits         []ledger.TextEdit     `json:"edits"`
	PageEdits     []ledger.TextEdit     `json:"pageEdits"`
	Preview       resource.Ref          `json:"preview,omitempty"`
	Syncing       bool                  `json:"syncing"`
	Exporting     bool                  `json:"exporting"`
	Error         string                `json:"error,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()
	return Snapshot{
		Phase:         s.Phase,
		FileName:      s.FileName,
		ServerPath:    s.ServerPath,
		Page:          s.Page,
		NumPages:      s.NumPages,
		Geometry:      s.Geometry,
		DisplayHeight: s.Geometry.DisplayHeight(),
		PendingText:   s.PendingText,
		Metadata:      s.Metadata,
		Edits:         s.Ledger.Edits(),
		PageEdits:     s.Ledger.ProjectByPage(s.Page),
		Preview:       c.coord.Handle().Display(),
		Syncing:       s.InFlight > 0,
		Exporting:     s.Exporting > 0,
		Error:         s.LastError,
	}
}
