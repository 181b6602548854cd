package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogotex/pdf-annotator/internal/geometry"
	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/internal/preview"
)

var (
	ErrNotPDF           = errors.New("please upload a PDF file")
	ErrNoDocument       = errors.New("no document loaded")
	ErrEmptyText        = errors.New("enter the text to place first")
	ErrNotPlacing       = errors.New("not in text placement mode")
	ErrGeometryNotReady = geometry.ErrGeometryNotReady
	ErrBusy             = errors.New("a preview update is in progress")
	ErrPageOutOfRange   = errors.New("page out of range")
	ErrNoEdits          = errors.New("no text edits to apply")
	ErrEditNotFound     = errors.New("edit not found")
	ErrUnknownFormat    = errors.New("unknown export format")
	ErrClosed           = errors.New("session closed")
)

// Phase is the lifecycle position of a session.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseUploaded
	PhasePreviewing
	PhasePlacing
	PhaseSyncing
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseUploaded:
		return "uploaded"
	case PhasePreviewing:
		return "previewing"
	case PhasePlacing:
		return "placing"
	case PhaseSyncing:
		return "syncing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for q := PhaseEmpty; q <= PhaseSyncing; q++ {
		if q.String() == string(b) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// State is the edit model of one session. Transitions below take a State
// and return a new one; none of them perform I/O.
type State struct {
	Phase       Phase
	Generation  uint64 // bumped on every upload
	FileName    string
	ServerPath  string
	Ledger      ledger.Ledger
	Page        int
	NumPages    int
	Geometry    geometry.PageGeometry
	PendingText string
	Metadata    pdfapi.Metadata
	InFlight    int
	Exporting   int
	LastError   string
}

func (s State) hasDocument() bool { return s.ServerPath != "" }

// resting is the phase a session returns to once nothing is in flight.
func (s State) resting() Phase {
	if !s.hasDocument() {
		return PhaseEmpty
	}
	if s.Geometry.Ready() {
		return PhasePreviewing
	}
	return PhaseUploaded
}

// Uploaded starts editing a freshly uploaded document: empty ledger, page 1.
// Metadata typed so far is kept.
func Uploaded(prev State, fileName, serverPath string, numPages int) State {
	return State{
		Phase:      PhaseUploaded,
		Generation: prev.Generation + 1,
		FileName:   fileName,
		ServerPath: serverPath,
		Page:       1,
		NumPages:   numPages,
		Metadata:   prev.Metadata,
	}
}

// GeometryLoaded records the geometry of the current page.
func GeometryLoaded(s State, g geometry.PageGeometry) State {
	s.Geometry = g
	if s.Phase == PhaseUploaded && g.Ready() {
		s.Phase = PhasePreviewing
	}
	return s
}

// WithPage navigates to page. The geometry of the new page must be loaded
// again since pages may differ in size.
func WithPage(s State, page int) (State, error) {
	if !s.hasDocument() {
		return s, ErrNoDocument
	}
	if page < 1 || (s.NumPages > 0 && page > s.NumPages) {
		return s, fmt.Errorf("%w: %d not in 1..%d", ErrPageOutOfRange, page, s.NumPages)
	}
	if page == s.Page {
		return s, nil
	}
	s.Page = page
	s.Geometry = geometry.PageGeometry{}
	if s.Phase == PhasePreviewing {
		s.Phase = PhaseUploaded
	}
	return s, nil
}

// BeginPlacing arms click capture with the text to place.
func BeginPlacing(s State, text string) (State, error) {
	if !s.hasDocument() {
		return s, ErrNoDocument
	}
	if s.InFlight > 0 {
		return s, ErrBusy
	}
	if strings.TrimSpace(text) == "" {
		return s, ErrEmptyText
	}
	s.Phase = PhasePlacing
	s.PendingText = text
	return s, nil
}

// CancelPlacing leaves placement mode without adding an edit.
func CancelPlacing(s State) State {
	if s.Phase == PhasePlacing {
		s.Phase = s.resting()
	}
	s.PendingText = ""
	return s
}

// Place maps a click to PDF space and appends the resulting edit. The
// returned state is syncing; the caller must resync the preview and then
// apply SyncFinished.
func Place(s State, click, origin geometry.Point) (State, ledger.TextEdit, error) {
	if s.Phase != PhasePlacing {
		return s, ledger.TextEdit{}, ErrNotPlacing
	}
	if strings.TrimSpace(s.PendingText) == "" {
		return s, ledger.TextEdit{}, ErrEmptyText
	}
	p, err := geometry.Map(click, origin, s.Geometry)
	if err != nil {
		return s, ledger.TextEdit{}, err
	}
	e, err := ledger.NewEdit(s.Page, p.X, p.Y, s.PendingText)
	if err != nil {
		return s, ledger.TextEdit{}, err
	}
	s.Ledger = s.Ledger.Append(e)
	s.PendingText = ""
	return SyncStarted(s), e, nil
}

// Removed installs a ledger that lost an edit and starts its resync. Pending
// text survives, so placement resumes once the resync ends.
func Removed(s State, led ledger.Ledger) State {
	s.Ledger = led
	return SyncStarted(s)
}

func SyncStarted(s State) State {
	s.InFlight++
	s.Phase = PhaseSyncing
	return s
}

// SyncFinished ends one resync. A superseded resync is not an error: the
// newer request reports for both. Results for an older upload are ignored.
func SyncFinished(s State, generation uint64, err error) State {
	if generation != s.Generation || s.InFlight == 0 {
		return s
	}
	s.InFlight--
	switch {
	case err == nil:
		s.LastError = ""
	case errors.Is(err, preview.ErrSuperseded):
	default:
		s.LastError = err.Error()
	}
	if s.InFlight == 0 && s.Phase == PhaseSyncing {
		s.Phase = s.resting()
		// a removal made while placing keeps the pending text armed
		if s.PendingText != "" && s.hasDocument() {
			s.Phase = PhasePlacing
		}
	}
	return s
}

// WithMetadata replaces the metadata applied at export time.
func WithMetadata(s State, md pdfapi.Metadata) State {
	s.Metadata = md
	return s
}
