package assemble_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/slide-flatten/internal/assemble"
	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/host/hosttest"
	"github.com/book-expert/slide-flatten/internal/slideorder"
)

func newLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

// writeSlides writes Slide_<n>.png files with the given sizes and returns their paths in order.
func writeSlides(t *testing.T, dir string, sizes ...image.Point) []string {
	t.Helper()

	paths := make([]string, 0, len(sizes))

	for index, size := range sizes {
		img := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
		for y := range size.Y {
			for x := range size.X {
				img.Set(x, y, color.NRGBA{R: uint8(index * 60), G: 100, B: 200, A: 128})
			}
		}

		path := filepath.Join(dir, slideorder.FileName(index+1))
		file, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(file, img))
		require.NoError(t, file.Close())

		paths = append(paths, path)
	}

	return paths
}

func TestDocumentAssembler_PagesFollowImageOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	images := writeSlides(t, dir, image.Pt(10, 20), image.Pt(30, 40), image.Pt(50, 60))
	output := filepath.Join(dir, "deck.pdf")

	assembler := assemble.NewDocumentAssembler(&assemble.Options{ProgressBarOutput: io.Discard}, newLogger(t))
	require.NoError(t, assembler.Assemble(context.Background(), images, output, host.PageSize{}))

	pageCount, err := api.PageCountFile(output)
	require.NoError(t, err)
	assert.Equal(t, 3, pageCount)

	dims, err := api.PageDimsFile(output)
	require.NoError(t, err)
	require.Len(t, dims, 3)

	for index, want := range []image.Point{image.Pt(10, 20), image.Pt(30, 40), image.Pt(50, 60)} {
		assert.InDelta(t, float64(want.X), dims[index].Width, 0.01, "page %d width", index+1)
		assert.InDelta(t, float64(want.Y), dims[index].Height, 0.01, "page %d height", index+1)
	}
}

func TestDocumentAssembler_UsesSourcePageSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	images := writeSlides(t, dir, image.Pt(120, 68), image.Pt(120, 68))
	output := filepath.Join(dir, "deck.pdf")

	assembler := assemble.NewDocumentAssembler(&assemble.Options{ProgressBarOutput: io.Discard}, newLogger(t))
	require.NoError(t, assembler.Assemble(
		context.Background(), images, output, host.PageSize{Width: 960, Height: 540},
	))

	dims, err := api.PageDimsFile(output)
	require.NoError(t, err)
	require.Len(t, dims, 2)

	for _, dim := range dims {
		assert.InDelta(t, 960.0, dim.Width, 0.01)
		assert.InDelta(t, 540.0, dim.Height, 0.01)
	}
}

func TestDocumentAssembler_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	assembler := assemble.NewDocumentAssembler(&assemble.Options{ProgressBarOutput: io.Discard}, newLogger(t))

	err := assembler.Assemble(ctx, nil, filepath.Join(dir, "empty.pdf"), host.PageSize{})
	require.ErrorIs(t, err, slideorder.ErrNoImages)
	assert.NoFileExists(t, filepath.Join(dir, "empty.pdf"))

	images := writeSlides(t, dir, image.Pt(8, 8))

	err = assembler.Assemble(ctx, images, "", host.PageSize{})
	require.ErrorIs(t, err, assemble.ErrOutputPathRequired)

	missing := append(images, filepath.Join(dir, "Slide_9.png"))
	err = assembler.Assemble(ctx, missing, filepath.Join(dir, "missing.pdf"), host.PageSize{})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(dir, "missing.pdf"))
}

func TestPresentationAssembler_OnePictureSlidePerImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	images := writeSlides(t, dir, image.Pt(12, 7), image.Pt(12, 7), image.Pt(12, 7))
	output := filepath.Join(dir, "deck_pictures.pptx")
	page := host.PageSize{Width: 960, Height: 540}

	fake := hosttest.New()
	app, err := fake.Launcher()(context.Background(), host.Options{Hidden: false})
	require.NoError(t, err)

	assembler := assemble.NewPresentationAssembler(&assemble.Options{ProgressBarOutput: io.Discard}, newLogger(t))
	require.NoError(t, assembler.Assemble(context.Background(), app, images, output, page))

	saved, ok := fake.Saved(output)
	require.True(t, ok)
	assert.Equal(t, page, saved.Page)
	require.Len(t, saved.Slides, 3)

	for index, slide := range saved.Slides {
		assert.Equal(t, host.LayoutBlank, slide.Layout)
		require.Len(t, slide.Pictures, 1)
		assert.Equal(t, hosttest.Picture{
			Name:   slideorder.FileName(index + 1),
			Left:   0,
			Top:    0,
			Width:  960,
			Height: 540,
		}, slide.Pictures[0])
	}

	assert.Zero(t, fake.OpenPresentations())
	assert.FileExists(t, output)
}

func TestPresentationAssembler_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	images := writeSlides(t, dir, image.Pt(4, 4))
	page := host.PageSize{Width: 960, Height: 540}
	assembler := assemble.NewPresentationAssembler(&assemble.Options{ProgressBarOutput: io.Discard}, newLogger(t))

	fake := hosttest.New()
	app, err := fake.Launcher()(ctx, host.Options{Hidden: true})
	require.NoError(t, err)

	require.ErrorIs(t, assembler.Assemble(ctx, app, nil, filepath.Join(dir, "a.pptx"), page), slideorder.ErrNoImages)
	require.ErrorIs(t, assembler.Assemble(ctx, app, images, "", page), assemble.ErrOutputPathRequired)
	require.Error(t, assembler.Assemble(ctx, app, images, filepath.Join(dir, "b.pptx"), host.PageSize{}))

	saveErr := errors.New("disk full")
	fake.SaveErr = saveErr
	require.ErrorIs(t, assembler.Assemble(ctx, app, images, filepath.Join(dir, "c.pptx"), page), saveErr)
	assert.Zero(t, fake.OpenPresentations(), "presentation must be closed after a failed save")

	fake.SaveErr = nil
	missing := []string{filepath.Join(dir, "Slide_42.png")}
	require.ErrorIs(t, assembler.Assemble(ctx, app, missing, filepath.Join(dir, "d.pptx"), page), os.ErrNotExist)
	assert.Zero(t, fake.OpenPresentations())
}
