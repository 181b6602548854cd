// Package pdfops rewrites PDF documents for the reference document service:
// every page of the source is imported as a template into a new document,
// text placements are drawn over it and the document info is set.
package pdfops

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"github.com/gogotex/pdf-annotator/internal/geometry"
	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"golang.org/x/text/encoding/charmap"
)

var ErrPageOutOfRange = errors.New("edit targets a page the document does not have")

// Writer renders rebuilt documents. The zero value is not usable; call New.
type Writer struct {
	FontFamily string
	FontSize   float64

	compress bool
}

func New() *Writer {
	return &Writer{FontFamily: "Helvetica", FontSize: 12, compress: true}
}

// Job describes one rebuild.
type Job struct {
	Edits    map[int][]ledger.Placement
	Metadata *pdfapi.Metadata
}

// InjectText draws edits over src. Placements are in PDF units with the
// origin at the bottom-left corner of the page.
func (w *Writer) InjectText(src []byte, edits map[int][]ledger.Placement) ([]byte, error) {
	return w.Rebuild(src, Job{Edits: edits})
}

// SetMetadata returns src with the given title, author and subject.
func (w *Writer) SetMetadata(src []byte, md pdfapi.Metadata) ([]byte, error) {
	return w.Rebuild(src, Job{Metadata: &md})
}

func (w *Writer) Rebuild(src []byte, job Job) (out []byte, err error) {
	sizes, err := geometry.PageSizes(src)
	if err != nil {
		return nil, err
	}
	for _, page := range sortedPages(job.Edits) {
		if page < 1 || page > len(sizes) {
			return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, len(sizes))
		}
	}

	// the importer panics on input it cannot parse
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("rebuild pdf: %v", r)
		}
	}()

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetCompression(w.compress)
	pdf.SetAutoPageBreak(false, 0)
	if md := job.Metadata; md != nil {
		pdf.SetTitle(md.Title, !isASCII(md.Title))
		pdf.SetAuthor(md.Author, !isASCII(md.Author))
		pdf.SetSubject(md.Subject, !isASCII(md.Subject))
	}
	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(src))

	for i, size := range sizes {
		page := i + 1
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.X, Ht: size.Y})
		tpl := imp.ImportPageFromStream(pdf, &rs, page, "/MediaBox")
		imp.UseImportedTemplate(pdf, tpl, 0, 0, size.X, size.Y)

		placements := job.Edits[page]
		if len(placements) == 0 {
			continue
		}
		pdf.SetFont(w.FontFamily, "", w.FontSize)
		pdf.SetTextColor(0, 0, 0)
		for _, p := range placements {
			pdf.Text(float64(p.X), size.Y-float64(p.Y), winAnsi(p.NewText))
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("rebuild pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedPages(edits map[int][]ledger.Placement) []int {
	pages := make([]int, 0, len(edits))
	for p := range edits {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// winAnsi encodes s for the standard Type1 fonts; runes outside
// Windows-1252 become '?'.
func winAnsi(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return string(out)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
