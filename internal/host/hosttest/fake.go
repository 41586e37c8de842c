// Package hosttest provides an in-memory presentation host for tests. Exported
// slides are written as real PNG files so downstream stages can decode them.
package hosttest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/book-expert/slide-flatten/internal/host"
)

// ErrUnknownPresentation is returned by Open for paths never registered with AddDeck.
var ErrUnknownPresentation = errors.New("unknown presentation")

// Deck describes a source presentation known to the fake host.
type Deck struct {
	Page   host.PageSize
	Slides int
}

// Picture records one AddPicture call.
type Picture struct {
	Name   string
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// SavedSlide is a slide of a presentation saved through SaveAs.
type SavedSlide struct {
	Layout   int
	Pictures []Picture
}

// SavedDeck is a presentation written through SaveAs.
type SavedDeck struct {
	Page   host.PageSize
	Slides []SavedSlide
}

// Host is a fake automation host. Zero value is not usable; call New.
type Host struct {
	LaunchErr error
	OpenErr   error
	ExportErr error
	SaveErr   error
	// ExportSize overrides the pixel size written by Export when non-zero.
	ExportSize image.Point

	mu       sync.Mutex
	decks    map[string]Deck
	saved    map[string]SavedDeck
	launches int
	quits    int
	opened   int
	closed   int
	options  host.Options
}

// New returns an empty fake host.
func New() *Host {
	return &Host{
		decks: make(map[string]Deck),
		saved: make(map[string]SavedDeck),
	}
}

// AddDeck registers a source presentation at path.
func (h *Host) AddDeck(path string, deck Deck) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.decks[path] = deck
}

// Saved returns the presentation saved at path.
func (h *Host) Saved(path string) (SavedDeck, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	deck, ok := h.saved[path]

	return deck, ok
}

// Launches reports how many sessions were started.
func (h *Host) Launches() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.launches
}

// Quits reports how many sessions were terminated.
func (h *Host) Quits() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.quits
}

// OpenPresentations reports presentations opened or created but not closed.
func (h *Host) OpenPresentations() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.opened - h.closed
}

// Options returns the options of the last launch.
func (h *Host) Options() host.Options {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.options
}

// Launcher returns a host.Launcher backed by h.
func (h *Host) Launcher() host.Launcher {
	return func(_ context.Context, opts host.Options) (host.Application, error) {
		h.mu.Lock()
		defer h.mu.Unlock()

		if h.LaunchErr != nil {
			return nil, h.LaunchErr
		}

		h.launches++
		h.options = opts

		return &application{host: h}, nil
	}
}

// SlideColor is the solid fill used for the exported image of a 1-based slide.
func SlideColor(index int) color.RGBA {
	return color.RGBA{R: uint8(index * 20 % 256), G: 40, B: 80, A: 255}
}

type application struct {
	host *Host
}

func (a *application) Open(path string) (host.Presentation, error) {
	a.host.mu.Lock()
	defer a.host.mu.Unlock()

	if a.host.OpenErr != nil {
		return nil, a.host.OpenErr
	}

	deck, ok := a.host.decks[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownPresentation)
	}

	a.host.opened++

	return &presentation{host: a.host, page: deck.Page, slides: make([]SavedSlide, deck.Slides)}, nil
}

func (a *application) Create() (host.Presentation, error) {
	a.host.mu.Lock()
	defer a.host.mu.Unlock()

	a.host.opened++

	return &presentation{host: a.host, page: host.PageSize{Width: 720, Height: 540}}, nil
}

func (a *application) Quit() error {
	a.host.mu.Lock()
	defer a.host.mu.Unlock()

	a.host.quits++

	return nil
}

type presentation struct {
	host   *Host
	page   host.PageSize
	slides []SavedSlide
	closed bool
}

func (p *presentation) PageSize() (host.PageSize, error) { return p.page, nil }

func (p *presentation) SetPageSize(size host.PageSize) error {
	p.page = size

	return nil
}

func (p *presentation) SlideCount() (int, error) { return len(p.slides), nil }

func (p *presentation) Slide(index int) (host.Slide, error) {
	if index < 1 || index > len(p.slides) {
		return nil, fmt.Errorf("slide %d of %d: %w", index, len(p.slides), host.ErrInvalidSlideIndex)
	}

	return &slide{deck: p, index: index}, nil
}

func (p *presentation) AddBlankSlide() (host.Slide, error) {
	p.slides = append(p.slides, SavedSlide{Layout: host.LayoutBlank, Pictures: nil})

	return &slide{deck: p, index: len(p.slides)}, nil
}

func (p *presentation) SaveAs(path string) error {
	p.host.mu.Lock()
	defer p.host.mu.Unlock()

	if p.host.SaveErr != nil {
		return p.host.SaveErr
	}

	slides := make([]SavedSlide, len(p.slides))
	copy(slides, p.slides)
	p.host.saved[path] = SavedDeck{Page: p.page, Slides: slides}

	if err := os.WriteFile(path, []byte("pptx"), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (p *presentation) Close() error {
	p.host.mu.Lock()
	defer p.host.mu.Unlock()

	if !p.closed {
		p.closed = true
		p.host.closed++
	}

	return nil
}

type slide struct {
	deck  *presentation
	index int
}

func (s *slide) Export(path, format string, width, height int) error {
	if s.deck.host.ExportErr != nil {
		return s.deck.host.ExportErr
	}

	if format != host.FormatPNG {
		return fmt.Errorf("unsupported export format %q", format)
	}

	if override := s.deck.host.ExportSize; override != (image.Point{}) {
		width, height = override.X, override.Y
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: SlideColor(s.index)}, image.Point{}, draw.Src)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if encodeErr := png.Encode(file, img); encodeErr != nil {
		return fmt.Errorf("encode %s: %w", path, encodeErr)
	}

	return nil
}

func (s *slide) AddPicture(path string, left, top, width, height float64) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("picture %s: %w", path, err)
	}

	current := &s.deck.slides[s.index-1]
	current.Pictures = append(current.Pictures, Picture{
		Name:   filepath.Base(path),
		Left:   left,
		Top:    top,
		Width:  width,
		Height: height,
	})

	return nil
}

func (s *slide) Release() {}
