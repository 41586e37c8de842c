package assemble

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/slideorder"
)

// ErrSlideCountMismatch is returned when the built presentation does not hold one slide per image.
var ErrSlideCountMismatch = errors.New("slide count does not match image count")

// PresentationAssembler builds a new presentation in the host with one
// full-page picture per slide.
type PresentationAssembler struct {
	log    *logger.Logger
	config Options
}

// NewPresentationAssembler creates a PresentationAssembler with defaults applied.
func NewPresentationAssembler(opts *Options, log *logger.Logger) *PresentationAssembler {
	applyDefaultOptions(opts)

	return &PresentationAssembler{log: log, config: *opts}
}

// Assemble creates a presentation sized to page, adds a blank slide per image
// with the picture at the origin filling the page, and saves it to outputPath.
// The new presentation is closed on every return path.
func (assembler *PresentationAssembler) Assemble(
	ctx context.Context,
	app host.Application,
	images []string,
	outputPath string,
	page host.PageSize,
) (err error) {
	if len(images) == 0 {
		return slideorder.ErrNoImages
	}

	if outputPath == "" {
		return ErrOutputPathRequired
	}

	if page.IsZero() {
		return fmt.Errorf("page %.2fx%.2f must be positive", page.Width, page.Height)
	}

	presentation, createErr := app.Create()
	if createErr != nil {
		return fmt.Errorf("failed to create presentation: %w", createErr)
	}

	defer func() {
		if closeErr := presentation.Close(); closeErr != nil {
			assembler.log.Warn("Failed to close new presentation: %v", closeErr)
			err = errors.Join(err, closeErr)
		}
	}()

	if sizeErr := presentation.SetPageSize(page); sizeErr != nil {
		return fmt.Errorf("failed to set page size: %w", sizeErr)
	}

	if fillErr := assembler.addPictureSlides(ctx, presentation, images, page); fillErr != nil {
		return fillErr
	}

	if saveErr := presentation.SaveAs(outputPath); saveErr != nil {
		return fmt.Errorf("failed to save %s: %w", outputPath, saveErr)
	}

	assembler.log.Info("Wrote %d picture slides to %s", len(images), filepath.Base(outputPath))

	return nil
}

func (assembler *PresentationAssembler) addPictureSlides(
	ctx context.Context,
	presentation host.Presentation,
	images []string,
	page host.PageSize,
) error {
	progressBar := newProgressBar(len(images), assembler.config.ProgressBarOutput)
	defer progressBar.Finish()

	for position, imagePath := range images {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("assembly interrupted at slide %d: %w", position+1, ctxErr)
		}

		if addErr := addPictureSlide(presentation, imagePath, page); addErr != nil {
			return fmt.Errorf("slide %d: %w", position+1, addErr)
		}

		progressBar.Increment()
	}

	count, countErr := presentation.SlideCount()
	if countErr != nil {
		return fmt.Errorf("could not count slides: %w", countErr)
	}

	if count != len(images) {
		return fmt.Errorf("built %d slides for %d images: %w", count, len(images), ErrSlideCountMismatch)
	}

	return nil
}

// addPictureSlide places the image at the origin scaled to the full page. No
// aspect correction: exported images already have the page's aspect ratio.
func addPictureSlide(presentation host.Presentation, imagePath string, page host.PageSize) error {
	slide, addErr := presentation.AddBlankSlide()
	if addErr != nil {
		return fmt.Errorf("failed to add blank slide: %w", addErr)
	}
	defer slide.Release()

	if pictureErr := slide.AddPicture(imagePath, 0, 0, page.Width, page.Height); pictureErr != nil {
		return fmt.Errorf("failed to add %s: %w", filepath.Base(imagePath), pictureErr)
	}

	return nil
}
