// Package host abstracts the desktop presentation application that renders and
// builds slide decks. Pipelines talk to it only through these interfaces so the
// automation binding can be swapped or faked in tests.
package host

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedPlatform is returned by Launch where no automation binding exists.
	ErrUnsupportedPlatform = errors.New("presentation host automation is not available on this platform")
	// ErrInvalidSlideIndex is returned when a slide index is outside 1..SlideCount.
	ErrInvalidSlideIndex = errors.New("slide index out of range")
)

const (
	// PointsPerInch is the number of page points in one inch.
	PointsPerInch = 72.0
	// FormatPNG is the export filter name for PNG rasters.
	FormatPNG = "PNG"
	// LayoutBlank is the host's identifier for the blank slide layout.
	LayoutBlank = 12
)

// PageSize is a slide page size expressed in points (1/72 inch).
type PageSize struct {
	Width  float64
	Height float64
}

// IsZero reports whether the page size is unset.
func (p PageSize) IsZero() bool {
	return p.Width <= 0 || p.Height <= 0
}

// Options controls how the host application is started.
type Options struct {
	// Hidden suppresses the host window. The host is visible by default.
	Hidden bool
}

// Launcher starts a host application session.
type Launcher func(ctx context.Context, opts Options) (Application, error)

// Application is a running host instance. Calls must come from the goroutine
// that launched it.
type Application interface {
	// Open opens an existing presentation read-only.
	Open(path string) (Presentation, error)
	// Create adds a new, empty presentation.
	Create() (Presentation, error)
	// Quit terminates the host and releases the session.
	Quit() error
}

// Presentation is an open deck inside the host.
type Presentation interface {
	PageSize() (PageSize, error)
	SetPageSize(size PageSize) error
	SlideCount() (int, error)
	// Slide returns the slide at a 1-based index.
	Slide(index int) (Slide, error)
	// AddBlankSlide appends a slide using the blank layout.
	AddBlankSlide() (Slide, error)
	SaveAs(path string) error
	Close() error
}

// Slide is a single slide handle. Release must be called once the handle is
// no longer used.
type Slide interface {
	Export(path, format string, width, height int) error
	AddPicture(path string, left, top, width, height float64) error
	Release()
}
