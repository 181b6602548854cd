package geometry

import (
	"errors"
	"fmt"
)

// DefaultDisplayWidth is the pixel width pages are rendered at when the
// caller does not configure one.
const DefaultDisplayWidth = 600.0

var (
	ErrGeometryNotReady = errors.New("page geometry not loaded")
	ErrInvalidScale     = errors.New("page scale must be positive")
)

// Point is a position in either display space (pixels, origin top-left,
// Y down) or PDF space (user units, origin bottom-left, Y up). Which one is
// implied by the function that produced it.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PageGeometry describes one rendered page: its intrinsic size at scale 1
// and the factor applied to fit it into the display width.
type PageGeometry struct {
	NaturalWidth  float64 `json:"naturalWidth"`
	NaturalHeight float64 `json:"naturalHeight"`
	Scale         float64 `json:"scale"`
}

// NewPageGeometry derives the geometry of a page of the given natural size
// rendered at displayWidth pixels.
func NewPageGeometry(naturalWidth, naturalHeight, displayWidth float64) (PageGeometry, error) {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return PageGeometry{}, fmt.Errorf("invalid page size %gx%g: %w", naturalWidth, naturalHeight, ErrInvalidScale)
	}
	scale := displayWidth / naturalWidth
	if scale <= 0 {
		return PageGeometry{}, ErrInvalidScale
	}
	return PageGeometry{NaturalWidth: naturalWidth, NaturalHeight: naturalHeight, Scale: scale}, nil
}

// Ready reports whether the geometry has been loaded for the current page.
func (g PageGeometry) Ready() bool {
	return g.NaturalHeight != 0 && g.Scale > 0
}

// DisplayHeight is the rendered height of the page in pixels.
func (g PageGeometry) DisplayHeight() float64 {
	return g.NaturalHeight * g.Scale
}

// Map converts a click in viewport pixels into PDF space. origin is the
// top-left corner of the rendered page element in the same pixel space.
func Map(click, origin Point, g PageGeometry) (Point, error) {
	if !g.Ready() {
		return Point{}, ErrGeometryNotReady
	}
	localX := click.X - origin.X
	localY := click.Y - origin.Y
	return Point{
		X: localX / g.Scale,
		Y: g.NaturalHeight - localY/g.Scale,
	}, nil
}

// ToDisplay is the inverse of Map for a page whose origin is (0, 0).
func ToDisplay(p Point, g PageGeometry) Point {
	return Point{
		X: p.X * g.Scale,
		Y: g.NaturalHeight*g.Scale - p.Y*g.Scale,
	}
}
