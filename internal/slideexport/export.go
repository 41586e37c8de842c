// Package slideexport rasterizes every slide of a presentation through the
// automation host into numbered PNG files.
package slideexport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/cheggaaa/pb/v3"

	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/raster"
	"github.com/book-expert/slide-flatten/internal/slideorder"
)

var (
	// ErrSourcePathRequired is returned when no presentation path is given.
	ErrSourcePathRequired = errors.New("source presentation path is required")
	// ErrWorkDirRequired is returned when no working directory is given.
	ErrWorkDirRequired = errors.New("working directory is required")
	// ErrNoSlides is returned for a presentation without slides.
	ErrNoSlides = errors.New("presentation has no slides")
	// ErrInvalidPageSize is returned when the host reports a non-positive page size.
	ErrInvalidPageSize = errors.New("presentation page size must be positive")
	// ErrUnexpectedImageSize is returned when an exported image does not match the requested size.
	ErrUnexpectedImageSize = errors.New("exported image size does not match requested size")
)

const (
	// DefaultDPI is used whenever a non-positive DPI is supplied.
	DefaultDPI = 300

	defaultDirMode = 0o750
)

// Options holds the configurable parameters of an Exporter.
type Options struct {
	// ProgressBarOutput receives the per-slide progress bar. Defaults to os.Stdout.
	ProgressBarOutput io.Writer
	// DPI is the raster density. Non-positive values fall back to DefaultDPI.
	DPI int
	// Blank decides which exported slides are reported as blank.
	Blank raster.BlankCriteria
}

// Result describes a finished export.
type Result struct {
	Dir    string
	Page   host.PageSize
	Width  int
	Height int
	Slides int
}

// Exporter writes Slide_<n>.png files for every slide of a presentation.
type Exporter struct {
	log    *logger.Logger
	config Options
}

// NewExporter creates an Exporter, filling zero-value options with defaults.
func NewExporter(opts *Options, log *logger.Logger) *Exporter {
	applyDefaultOptions(opts)

	return &Exporter{
		log:    log,
		config: *opts,
	}
}

func applyDefaultOptions(opts *Options) {
	opts.DPI = NormalizeDPI(opts.DPI)

	if opts.ProgressBarOutput == nil {
		opts.ProgressBarOutput = os.Stdout
	}

	if opts.Blank == (raster.BlankCriteria{}) {
		opts.Blank = raster.DefaultBlankCriteria()
	}
}

// NormalizeDPI returns dpi, or DefaultDPI when dpi is not positive.
func NormalizeDPI(dpi int) int {
	if dpi <= 0 {
		return DefaultDPI
	}

	return dpi
}

// PixelSize converts a page size in points to pixels at dpi.
func PixelSize(page host.PageSize, dpi int) (int, int) {
	scale := float64(dpi) / host.PointsPerInch

	return int(math.Round(page.Width * scale)), int(math.Round(page.Height * scale))
}

// Export opens sourcePath in app and writes one image per slide into workDir.
// workDir is emptied first so images left by an earlier run never reach the
// output. The presentation is closed on every return path.
func (exporter *Exporter) Export(
	ctx context.Context,
	app host.Application,
	sourcePath, workDir string,
) (result *Result, err error) {
	if sourcePath == "" {
		return nil, ErrSourcePathRequired
	}

	if workDir == "" {
		return nil, ErrWorkDirRequired
	}

	if removeErr := os.RemoveAll(workDir); removeErr != nil {
		return nil, fmt.Errorf("failed to clear working directory %s: %w", workDir, removeErr)
	}

	if mkdirErr := os.MkdirAll(workDir, defaultDirMode); mkdirErr != nil {
		return nil, fmt.Errorf("failed to create working directory %s: %w", workDir, mkdirErr)
	}

	presentation, openErr := app.Open(sourcePath)
	if openErr != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(sourcePath), openErr)
	}

	defer func() {
		if closeErr := presentation.Close(); closeErr != nil {
			exporter.log.Warn("Failed to close %s: %v", filepath.Base(sourcePath), closeErr)
			err = errors.Join(err, closeErr)
		}
	}()

	return exporter.exportSlides(ctx, presentation, workDir)
}

func (exporter *Exporter) exportSlides(
	ctx context.Context,
	presentation host.Presentation,
	workDir string,
) (*Result, error) {
	page, pageErr := presentation.PageSize()
	if pageErr != nil {
		return nil, fmt.Errorf("could not read page size: %w", pageErr)
	}

	if page.IsZero() {
		return nil, fmt.Errorf("%.2fx%.2f: %w", page.Width, page.Height, ErrInvalidPageSize)
	}

	slideCount, countErr := presentation.SlideCount()
	if countErr != nil {
		return nil, fmt.Errorf("could not count slides: %w", countErr)
	}

	if slideCount <= 0 {
		return nil, ErrNoSlides
	}

	width, height := PixelSize(page, exporter.config.DPI)
	exporter.log.Info(
		"Exporting %d slides at %d DPI (%dx%d px) into %s",
		slideCount, exporter.config.DPI, width, height, workDir,
	)

	progressBar := pb.New(slideCount).
		SetTemplateString(`  {{ bar . " " "▸" "▹" " " " "}} {{counters .}} {{etime .}}`).
		SetWriter(exporter.config.ProgressBarOutput).
		Start()
	defer progressBar.Finish()

	for index := 1; index <= slideCount; index++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("export interrupted before slide %d: %w", index, ctxErr)
		}

		imagePath := filepath.Join(workDir, slideorder.FileName(index))

		if slideErr := exporter.exportSlide(presentation, index, imagePath, width, height); slideErr != nil {
			return nil, slideErr
		}

		progressBar.Increment()
	}

	return &Result{
		Dir:    workDir,
		Page:   page,
		Width:  width,
		Height: height,
		Slides: slideCount,
	}, nil
}

func (exporter *Exporter) exportSlide(
	presentation host.Presentation,
	index int,
	imagePath string,
	width, height int,
) error {
	slide, slideErr := presentation.Slide(index)
	if slideErr != nil {
		return fmt.Errorf("could not get slide %d: %w", index, slideErr)
	}
	defer slide.Release()

	if exportErr := slide.Export(imagePath, host.FormatPNG, width, height); exportErr != nil {
		return fmt.Errorf("export of slide %d failed: %w", index, exportErr)
	}

	return exporter.inspectSlide(index, imagePath, width, height)
}

// inspectSlide verifies the exported size and warns about blank slides. Blank
// slides are kept: every slide of the source must reach the output.
func (exporter *Exporter) inspectSlide(index int, imagePath string, width, height int) error {
	size, sizeErr := raster.Dimensions(imagePath)
	if sizeErr != nil {
		return fmt.Errorf("slide %d: %w", index, sizeErr)
	}

	if size.X != width || size.Y != height {
		return fmt.Errorf(
			"slide %d is %dx%d, want %dx%d: %w",
			index, size.X, size.Y, width, height, ErrUnexpectedImageSize,
		)
	}

	img, openErr := raster.Open(imagePath)
	if openErr != nil {
		return fmt.Errorf("slide %d: %w", index, openErr)
	}

	blank, blankErr := raster.IsBlank(img, exporter.config.Blank)
	if blankErr != nil {
		exporter.log.Warn("Blank detection failed for slide %d: %v", index, blankErr)

		return nil
	}

	if blank {
		exporter.log.Warn("Slide %d looks blank: %s", index, filepath.Base(imagePath))
	}

	return nil
}
