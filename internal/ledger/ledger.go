// Package ledger holds the ordered, in-memory record of pending text
// overlays for one document. A Ledger value is never modified in place:
// every operation returns a new Ledger, so callers holding an older value
// keep seeing exactly what they saw.
package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math"
	"sort"
	"strings"
)

var (
	ErrInvalidPage = errors.New("page must be >= 1")
	ErrEmptyText   = errors.New("text must not be empty")
)

// TextEdit is one text overlay in PDF space.
type TextEdit struct {
	ID   string  `json:"id"`
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// Placement is the wire form of an edit expected by the text-injection
// endpoint. Coordinates are whole PDF units.
type Placement struct {
	X       int    `json:"X"`
	Y       int    `json:"Y"`
	NewText string `json:"NewText"`
}

// NewEdit validates the edit and assigns it a fresh identifier.
func NewEdit(page int, x, y float64, text string) (TextEdit, error) {
	if page < 1 {
		return TextEdit{}, ErrInvalidPage
	}
	if strings.TrimSpace(text) == "" {
		return TextEdit{}, ErrEmptyText
	}
	return TextEdit{ID: newID(), Page: page, X: x, Y: y, Text: text}, nil
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic("ledger: crypto/rand failed: " + err.Error())
	}
	return "edit_" + hex.EncodeToString(b)
}

// Placement returns the rounded wire form of e.
func (e TextEdit) Placement() Placement {
	return Placement{X: round(e.X), Y: round(e.Y), NewText: e.Text}
}

// sameAs compares position and text, ignoring identity.
func (e TextEdit) sameAs(page int, x, y float64, text string) bool {
	return e.Page == page && e.X == x && e.Y == y && e.Text == text
}

// round rounds half up: 2.5 -> 3, -2.5 -> -2.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Ledger is an immutable ordered sequence of edits.
type Ledger struct {
	edits []TextEdit
}

// Of builds a ledger from edits in order.
func Of(edits ...TextEdit) Ledger {
	return Ledger{edits: append([]TextEdit(nil), edits...)}
}

func (l Ledger) Len() int      { return len(l.edits) }
func (l Ledger) IsEmpty() bool { return len(l.edits) == 0 }

// Edits returns a copy of the edits in insertion order.
func (l Ledger) Edits() []TextEdit {
	return append([]TextEdit{}, l.edits...)
}

// Append returns a new ledger with e at the end.
func (l Ledger) Append(e TextEdit) Ledger {
	out := make([]TextEdit, len(l.edits), len(l.edits)+1)
	copy(out, l.edits)
	return Ledger{edits: append(out, e)}
}

// Get looks an edit up by identifier.
func (l Ledger) Get(id string) (TextEdit, bool) {
	for _, e := range l.edits {
		if e.ID == id {
			return e, true
		}
	}
	return TextEdit{}, false
}

// Remove drops the edit with the given identifier.
func (l Ledger) Remove(id string) (Ledger, bool) {
	for i, e := range l.edits {
		if e.ID == id {
			return l.without(i), true
		}
	}
	return l, false
}

// RemoveMatch drops the first edit on page equal to (x, y, text), scanning
// the page projection in display order.
func (l Ledger) RemoveMatch(page int, x, y float64, text string) (Ledger, bool) {
	for i, e := range l.edits {
		if e.sameAs(page, x, y, text) {
			return l.without(i), true
		}
	}
	return l, false
}

// RemoveAt drops the index-th edit of the page projection, i.e. the row a
// user picked from the list of edits shown for that page.
func (l Ledger) RemoveAt(page, index int) (Ledger, TextEdit, bool) {
	if index < 0 {
		return l, TextEdit{}, false
	}
	n := 0
	for i, e := range l.edits {
		if e.Page != page {
			continue
		}
		if n == index {
			return l.without(i), e, true
		}
		n++
	}
	return l, TextEdit{}, false
}

func (l Ledger) without(i int) Ledger {
	out := make([]TextEdit, 0, len(l.edits)-1)
	out = append(out, l.edits[:i]...)
	out = append(out, l.edits[i+1:]...)
	return Ledger{edits: out}
}

// ProjectByPage returns the edits of one page, in insertion order.
func (l Ledger) ProjectByPage(page int) []TextEdit {
	out := []TextEdit{}
	for _, e := range l.edits {
		if e.Page == page {
			out = append(out, e)
		}
	}
	return out
}

// GroupByPage is the payload shape of the text-injection call.
func (l Ledger) GroupByPage() map[int][]Placement {
	out := make(map[int][]Placement)
	for _, e := range l.edits {
		out[e.Page] = append(out[e.Page], e.Placement())
	}
	return out
}

// Pages lists the pages that carry at least one edit, ascending.
func (l Ledger) Pages() []int {
	seen := map[int]bool{}
	var out []int
	for _, e := range l.edits {
		if !seen[e.Page] {
			seen[e.Page] = true
			out = append(out, e.Page)
		}
	}
	sort.Ints(out)
	return out
}
