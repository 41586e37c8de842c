//go:build windows

package host

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const (
	powerPointProgID = "PowerPoint.Application"

	msoTrue  int32 = -1
	msoFalse int32 = 0

	// hresultSFalse is returned by CoInitializeEx when the apartment already exists.
	hresultSFalse = 1
)

// Launch starts PowerPoint through COM automation. The calling goroutine is
// locked to its OS thread until Quit, because the COM apartment is bound to it.
func Launch(ctx context.Context, opts Options) (Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch cancelled: %w", err)
	}

	runtime.LockOSThread()

	initErr := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)
	if initErr != nil && !isSFalse(initErr) {
		runtime.UnlockOSThread()

		return nil, fmt.Errorf("failed to initialize COM: %w", initErr)
	}

	app, err := dispatchApplication(opts)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()

		return nil, err
	}

	return app, nil
}

func isSFalse(err error) bool {
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		return oleErr.Code() == hresultSFalse
	}

	return false
}

func dispatchApplication(opts Options) (*powerPoint, error) {
	unknown, createErr := oleutil.CreateObject(powerPointProgID)
	if createErr != nil {
		return nil, fmt.Errorf("failed to create %s: %w", powerPointProgID, createErr)
	}
	defer unknown.Release()

	app, queryErr := unknown.QueryInterface(ole.IID_IDispatch)
	if queryErr != nil {
		return nil, fmt.Errorf("failed to query IDispatch: %w", queryErr)
	}

	// PowerPoint refuses Visible=false on the application object in many
	// versions; windowless operation is requested per presentation instead.
	if !opts.Hidden {
		if _, putErr := oleutil.PutProperty(app, "Visible", msoTrue); putErr != nil {
			app.Release()

			return nil, fmt.Errorf("failed to show host window: %w", putErr)
		}
	}

	presentations, getErr := oleutil.GetProperty(app, "Presentations")
	if getErr != nil {
		app.Release()

		return nil, fmt.Errorf("failed to get Presentations collection: %w", getErr)
	}

	return &powerPoint{
		app:           app,
		presentations: presentations.ToIDispatch(),
		withWindow:    !opts.Hidden,
	}, nil
}

type powerPoint struct {
	app           *ole.IDispatch
	presentations *ole.IDispatch
	withWindow    bool
}

func (p *powerPoint) windowFlag() int32 {
	if p.withWindow {
		return msoTrue
	}

	return msoFalse
}

// Open opens a presentation read-only.
func (p *powerPoint) Open(path string) (Presentation, error) {
	result, err := oleutil.CallMethod(
		p.presentations,
		"Open",
		path,
		msoTrue,  // ReadOnly
		msoFalse, // Untitled
		p.windowFlag(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open presentation %s: %w", path, err)
	}

	return newDeck(result.ToIDispatch())
}

// Create adds a new presentation.
func (p *powerPoint) Create() (Presentation, error) {
	result, err := oleutil.CallMethod(p.presentations, "Add", p.windowFlag())
	if err != nil {
		return nil, fmt.Errorf("failed to create presentation: %w", err)
	}

	return newDeck(result.ToIDispatch())
}

// Quit closes PowerPoint and tears down the COM apartment.
func (p *powerPoint) Quit() error {
	defer runtime.UnlockOSThread()
	defer ole.CoUninitialize()

	p.presentations.Release()

	_, quitErr := oleutil.CallMethod(p.app, "Quit")
	p.app.Release()

	if quitErr != nil {
		return fmt.Errorf("failed to quit host: %w", quitErr)
	}

	return nil
}

type deck struct {
	pres      *ole.IDispatch
	slides    *ole.IDispatch
	pageSetup *ole.IDispatch
}

func newDeck(pres *ole.IDispatch) (*deck, error) {
	slides, slidesErr := oleutil.GetProperty(pres, "Slides")
	if slidesErr != nil {
		pres.Release()

		return nil, fmt.Errorf("failed to get Slides collection: %w", slidesErr)
	}

	pageSetup, setupErr := oleutil.GetProperty(pres, "PageSetup")
	if setupErr != nil {
		slides.ToIDispatch().Release()
		pres.Release()

		return nil, fmt.Errorf("failed to get PageSetup: %w", setupErr)
	}

	return &deck{
		pres:      pres,
		slides:    slides.ToIDispatch(),
		pageSetup: pageSetup.ToIDispatch(),
	}, nil
}

func (d *deck) PageSize() (PageSize, error) {
	width, widthErr := d.floatProperty("SlideWidth")
	if widthErr != nil {
		return PageSize{}, widthErr
	}

	height, heightErr := d.floatProperty("SlideHeight")
	if heightErr != nil {
		return PageSize{}, heightErr
	}

	return PageSize{Width: width, Height: height}, nil
}

func (d *deck) floatProperty(name string) (float64, error) {
	variant, err := oleutil.GetProperty(d.pageSetup, name)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer func() { _ = variant.Clear() }()

	return toFloat(variant.Value())
}

func (d *deck) SetPageSize(size PageSize) error {
	if _, err := oleutil.PutProperty(d.pageSetup, "SlideWidth", float32(size.Width)); err != nil {
		return fmt.Errorf("failed to set SlideWidth: %w", err)
	}

	if _, err := oleutil.PutProperty(d.pageSetup, "SlideHeight", float32(size.Height)); err != nil {
		return fmt.Errorf("failed to set SlideHeight: %w", err)
	}

	return nil
}

func (d *deck) SlideCount() (int, error) {
	variant, err := oleutil.GetProperty(d.slides, "Count")
	if err != nil {
		return 0, fmt.Errorf("failed to count slides: %w", err)
	}
	defer func() { _ = variant.Clear() }()

	count, convErr := toFloat(variant.Value())
	if convErr != nil {
		return 0, convErr
	}

	return int(count), nil
}

func (d *deck) Slide(index int) (Slide, error) {
	count, countErr := d.SlideCount()
	if countErr != nil {
		return nil, countErr
	}

	if index < 1 || index > count {
		return nil, fmt.Errorf("slide %d of %d: %w", index, count, ErrInvalidSlideIndex)
	}

	result, err := oleutil.CallMethod(d.slides, "Item", int32(index))
	if err != nil {
		return nil, fmt.Errorf("failed to get slide %d: %w", index, err)
	}

	return &slide{disp: result.ToIDispatch()}, nil
}

func (d *deck) AddBlankSlide() (Slide, error) {
	count, countErr := d.SlideCount()
	if countErr != nil {
		return nil, countErr
	}

	result, err := oleutil.CallMethod(d.slides, "Add", int32(count+1), int32(LayoutBlank))
	if err != nil {
		return nil, fmt.Errorf("failed to add slide %d: %w", count+1, err)
	}

	return &slide{disp: result.ToIDispatch()}, nil
}

func (d *deck) SaveAs(path string) error {
	if _, err := oleutil.CallMethod(d.pres, "SaveAs", path); err != nil {
		return fmt.Errorf("failed to save presentation to %s: %w", path, err)
	}

	return nil
}

func (d *deck) Close() error {
	d.pageSetup.Release()
	d.slides.Release()

	_, closeErr := oleutil.CallMethod(d.pres, "Close")
	d.pres.Release()

	if closeErr != nil {
		return fmt.Errorf("failed to close presentation: %w", closeErr)
	}

	return nil
}

type slide struct {
	disp *ole.IDispatch
}

func (s *slide) Export(path, format string, width, height int) error {
	_, err := oleutil.CallMethod(s.disp, "Export", path, format, int32(width), int32(height))
	if err != nil {
		return fmt.Errorf("failed to export slide to %s: %w", path, err)
	}

	return nil
}

func (s *slide) AddPicture(path string, left, top, width, height float64) error {
	shapes, shapesErr := oleutil.GetProperty(s.disp, "Shapes")
	if shapesErr != nil {
		return fmt.Errorf("failed to get Shapes collection: %w", shapesErr)
	}

	shapesDisp := shapes.ToIDispatch()
	defer shapesDisp.Release()

	picture, err := oleutil.CallMethod(
		shapesDisp,
		"AddPicture",
		path,
		msoFalse, // LinkToFile
		msoTrue,  // SaveWithDocument
		float32(left),
		float32(top),
		float32(width),
		float32(height),
	)
	if err != nil {
		return fmt.Errorf("failed to place picture %s: %w", path, err)
	}

	picture.ToIDispatch().Release()

	return nil
}

func (s *slide) Release() {
	s.disp.Release()
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unexpected numeric variant %T", value)
	}
}
