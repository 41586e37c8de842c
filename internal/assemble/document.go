// Package assemble turns an ordered sequence of slide images back into a
// single artifact: a paginated PDF or a picture-only presentation.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/cheggaaa/pb/v3"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/signintech/gopdf"

	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/raster"
	"github.com/book-expert/slide-flatten/internal/slideorder"
)

var (
	// ErrOutputPathRequired is returned when no output path is given.
	ErrOutputPathRequired = errors.New("output path is required")
	// ErrPageCountMismatch is returned when the written PDF does not hold one page per image.
	ErrPageCountMismatch = errors.New("pdf page count does not match image count")
)

// Options holds the configurable parameters shared by the assemblers.
type Options struct {
	// ProgressBarOutput receives the progress bar. Defaults to os.Stdout.
	ProgressBarOutput io.Writer
}

func applyDefaultOptions(opts *Options) {
	if opts.ProgressBarOutput == nil {
		opts.ProgressBarOutput = os.Stdout
	}
}

func newProgressBar(total int, output io.Writer) *pb.ProgressBar {
	return pb.New(total).
		SetTemplateString(`  {{ bar . " " "━" "━" " " " "}} {{counters .}} {{percent .}}`).
		SetWriter(output).
		Start()
}

// DocumentAssembler composes slide images into one PDF, one page per image.
type DocumentAssembler struct {
	log    *logger.Logger
	config Options
}

// NewDocumentAssembler creates a DocumentAssembler with defaults applied.
func NewDocumentAssembler(opts *Options, log *logger.Logger) *DocumentAssembler {
	applyDefaultOptions(opts)

	return &DocumentAssembler{log: log, config: *opts}
}

// Assemble writes images to outputPath as a PDF in the given order. Each page is
// sized to page, or to the image's pixel size at 72 per inch when page is zero.
// Images are normalized to opaque RGB and released one at a time.
func (assembler *DocumentAssembler) Assemble(
	ctx context.Context,
	images []string,
	outputPath string,
	page host.PageSize,
) error {
	if len(images) == 0 {
		return slideorder.ErrNoImages
	}

	if outputPath == "" {
		return ErrOutputPathRequired
	}

	defaultRect := *gopdf.PageSizeA4
	if !page.IsZero() {
		defaultRect = gopdf.Rect{W: page.Width, H: page.Height}
	}

	document := &gopdf.GoPdf{}
	document.Start(gopdf.Config{PageSize: defaultRect})

	progressBar := newProgressBar(len(images), assembler.config.ProgressBarOutput)
	defer progressBar.Finish()

	for pageNumber, imagePath := range images {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("assembly interrupted at page %d: %w", pageNumber+1, ctxErr)
		}

		if addErr := addImagePage(document, imagePath, page); addErr != nil {
			return fmt.Errorf("page %d: %w", pageNumber+1, addErr)
		}

		progressBar.Increment()
	}

	if writeErr := document.WritePdf(outputPath); writeErr != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, writeErr)
	}

	if verifyErr := verifyPageCount(outputPath, len(images)); verifyErr != nil {
		if removeErr := os.Remove(outputPath); removeErr != nil {
			assembler.log.Warn("Failed to remove invalid output %s: %v", outputPath, removeErr)
		}

		return verifyErr
	}

	assembler.log.Info("Wrote %d pages to %s", len(images), filepath.Base(outputPath))

	return nil
}

// addImagePage decodes one image, normalizes it and places it on a new page.
// The decoded image goes out of scope before the next page is opened.
func addImagePage(document *gopdf.GoPdf, imagePath string, page host.PageSize) error {
	img, openErr := raster.Open(imagePath)
	if openErr != nil {
		return openErr
	}

	rgb := raster.ToRGB(img)

	rect := gopdf.Rect{W: page.Width, H: page.Height}
	if page.IsZero() {
		bounds := rgb.Bounds()
		rect = gopdf.Rect{W: float64(bounds.Dx()), H: float64(bounds.Dy())}
	}

	document.AddPageWithOption(gopdf.PageOption{PageSize: &rect})

	if drawErr := document.ImageFrom(rgb, 0, 0, &rect); drawErr != nil {
		return fmt.Errorf("failed to place %s: %w", filepath.Base(imagePath), drawErr)
	}

	return nil
}

// verifyPageCount re-reads the written PDF and checks it holds want pages.
func verifyPageCount(outputPath string, want int) error {
	got, countErr := api.PageCountFile(outputPath)
	if countErr != nil {
		return fmt.Errorf("failed to verify %s: %w", outputPath, countErr)
	}

	if got != want {
		return fmt.Errorf("%s has %d pages, want %d: %w", outputPath, got, want, ErrPageCountMismatch)
	}

	return nil
}
