package geometry

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu would otherwise create a config dir under the user's home.
	api.DisableConfigDir()
}

// PDFConfig returns the pdfcpu configuration used for reading previews.
func PDFConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in the given PDF document.
func PageCount(pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), PDFConfig())
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

// PageSizes returns the natural (scale 1) size of every page, in PDF units.
func PageSizes(pdf []byte) ([]Point, error) {
	dims, err := api.PageDims(bytes.NewReader(pdf), PDFConfig())
	if err != nil {
		return nil, fmt.Errorf("page dims: %w", err)
	}
	out := make([]Point, 0, len(dims))
	for _, d := range dims {
		out = append(out, Point{X: d.Width, Y: d.Height})
	}
	return out, nil
}

// FromPDF derives the geometry of page (1-based) as it would be rendered at
// displayWidth pixels.
func FromPDF(pdf []byte, page int, displayWidth float64) (PageGeometry, error) {
	sizes, err := PageSizes(pdf)
	if err != nil {
		return PageGeometry{}, err
	}
	if page < 1 || page > len(sizes) {
		return PageGeometry{}, fmt.Errorf("page %d outside 1..%d", page, len(sizes))
	}
	s := sizes[page-1]
	return NewPageGeometry(s.X, s.Y, displayWidth)
}
