package slideexport_test

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/host/hosttest"
	"github.com/book-expert/slide-flatten/internal/raster"
	"github.com/book-expert/slide-flatten/internal/slideexport"
	"github.com/book-expert/slide-flatten/internal/slideorder"
)

func newLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func newExporter(t *testing.T, dpi int) *slideexport.Exporter {
	t.Helper()

	return slideexport.NewExporter(&slideexport.Options{
		ProgressBarOutput: io.Discard,
		DPI:               dpi,
		Blank:             raster.BlankCriteria{FuzzPercent: 0, NonWhiteThreshold: 0},
	}, newLogger(t))
}

func launch(t *testing.T, fake *hosttest.Host) host.Application {
	t.Helper()

	app, err := fake.Launcher()(context.Background(), host.Options{Hidden: false})
	require.NoError(t, err)

	return app
}

func TestNormalizeDPI(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 300, slideexport.NormalizeDPI(0))
	assert.Equal(t, 300, slideexport.NormalizeDPI(-72))
	assert.Equal(t, 1, slideexport.NormalizeDPI(1))
	assert.Equal(t, 150, slideexport.NormalizeDPI(150))
}

func TestPixelSize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		page       host.PageSize
		dpi        int
		wantWidth  int
		wantHeight int
	}{
		{name: "Widescreen at 300", page: host.PageSize{Width: 960, Height: 540}, dpi: 300, wantWidth: 4000, wantHeight: 2250},
		{name: "Widescreen at 72 is identity", page: host.PageSize{Width: 960, Height: 540}, dpi: 72, wantWidth: 960, wantHeight: 540},
		{name: "Standard 4:3 at 96", page: host.PageSize{Width: 720, Height: 540}, dpi: 96, wantWidth: 960, wantHeight: 720},
		{name: "Rounds half up", page: host.PageSize{Width: 960, Height: 540}, dpi: 9, wantWidth: 120, wantHeight: 68},
		{name: "Rounds down", page: host.PageSize{Width: 100, Height: 100}, dpi: 11, wantWidth: 15, wantHeight: 15},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			width, height := slideexport.PixelSize(tc.page, tc.dpi)
			assert.Equal(t, tc.wantWidth, width)
			assert.Equal(t, tc.wantHeight, height)
		})
	}
}

func TestNewExporter_Defaults(t *testing.T) {
	t.Parallel()

	exporter := slideexport.NewExporter(&slideexport.Options{
		ProgressBarOutput: nil,
		DPI:               0,
		Blank:             raster.BlankCriteria{FuzzPercent: 0, NonWhiteThreshold: 0},
	}, newLogger(t))

	cfg := exporter.ConfigForTest()
	assert.Equal(t, slideexport.DefaultDPI, cfg.DPI)
	assert.Equal(t, raster.DefaultBlankCriteria(), cfg.Blank)
	assert.Equal(t, os.Stdout, cfg.ProgressBarOutput)
}

func TestExport_WritesNumberedSlides(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	source := filepath.Join(root, "deck.pptx")
	workDir := filepath.Join(root, "deck_images")

	fake := hosttest.New()
	fake.AddDeck(source, hosttest.Deck{Page: host.PageSize{Width: 960, Height: 540}, Slides: 3})

	result, err := newExporter(t, 9).Export(context.Background(), launch(t, fake), source, workDir)
	require.NoError(t, err)

	assert.Equal(t, host.PageSize{Width: 960, Height: 540}, result.Page)
	assert.Equal(t, 3, result.Slides)
	assert.Equal(t, 120, result.Width)
	assert.Equal(t, 68, result.Height)
	assert.Equal(t, workDir, result.Dir)

	for index := 1; index <= 3; index++ {
		size, sizeErr := raster.Dimensions(filepath.Join(workDir, slideorder.FileName(index)))
		require.NoError(t, sizeErr)
		assert.Equal(t, image.Point{X: 120, Y: 68}, size)
	}

	assert.Zero(t, fake.OpenPresentations(), "source presentation must be closed")
}

func TestExport_ClearsLeftoverImages(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	source := filepath.Join(root, "deck.pptx")
	workDir := filepath.Join(root, "deck_images")

	require.NoError(t, os.MkdirAll(workDir, 0o750))

	for _, name := range []string{"Slide_3.png", "Slide_4.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(workDir, name), []byte("old"), 0o600))
	}

	fake := hosttest.New()
	fake.AddDeck(source, hosttest.Deck{Page: host.PageSize{Width: 96, Height: 54}, Slides: 2})

	result, err := newExporter(t, 72).Export(context.Background(), launch(t, fake), source, workDir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Slides)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	assert.ElementsMatch(t, []string{"Slide_1.png", "Slide_2.png"}, names)
}

func TestExport_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	source := filepath.Join(root, "deck.pptx")

	t.Run("Missing paths", func(t *testing.T) {
		t.Parallel()

		fake := hosttest.New()
		exporter := newExporter(t, 9)

		_, err := exporter.Export(ctx, launch(t, fake), "", filepath.Join(root, "a"))
		require.ErrorIs(t, err, slideexport.ErrSourcePathRequired)

		_, err = exporter.Export(ctx, launch(t, fake), source, "")
		require.ErrorIs(t, err, slideexport.ErrWorkDirRequired)
	})

	t.Run("Unknown presentation", func(t *testing.T) {
		t.Parallel()

		fake := hosttest.New()
		_, err := newExporter(t, 9).Export(ctx, launch(t, fake), source, filepath.Join(root, "b"))
		require.ErrorIs(t, err, hosttest.ErrUnknownPresentation)
	})

	t.Run("No slides", func(t *testing.T) {
		t.Parallel()

		fake := hosttest.New()
		fake.AddDeck(source, hosttest.Deck{Page: host.PageSize{Width: 960, Height: 540}, Slides: 0})

		_, err := newExporter(t, 9).Export(ctx, launch(t, fake), source, filepath.Join(root, "c"))
		require.ErrorIs(t, err, slideexport.ErrNoSlides)
		assert.Zero(t, fake.OpenPresentations())
	})

	t.Run("Zero page size", func(t *testing.T) {
		t.Parallel()

		fake := hosttest.New()
		fake.AddDeck(source, hosttest.Deck{Page: host.PageSize{Width: 0, Height: 540}, Slides: 2})

		_, err := newExporter(t, 9).Export(ctx, launch(t, fake), source, filepath.Join(root, "d"))
		require.ErrorIs(t, err, slideexport.ErrInvalidPageSize)
	})

	t.Run("Host export failure closes presentation", func(t *testing.T) {
		t.Parallel()

		exportErr := errors.New("RPC server unavailable")
		fake := hosttest.New()
		fake.ExportErr = exportErr
		fake.AddDeck(source, hosttest.Deck{Page: host.PageSize{Width: 960, Height: 540}, Slides: 2})

		_, err := newExporter(t, 9).Export(ctx, launch(t, fake), source, filepath.Join(root, "e"))
		require.ErrorIs(t, err, exportErr)
		assert.Zero(t, fake.OpenPresentations())
	})

	t.Run("Wrong exported size", func(t *testing.T) {
		t.Parallel()

		fake := hosttest.New()
		fake.ExportSize = image.Point{X: 10, Y: 10}
		fake.AddDeck(source, hosttest.Deck{Page: host.PageSize{Width: 960, Height: 540}, Slides: 1})

		_, err := newExporter(t, 9).Export(ctx, launch(t, fake), source, filepath.Join(root, "f"))
		require.ErrorIs(t, err, slideexport.ErrUnexpectedImageSize)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		t.Parallel()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		fake := hosttest.New()
		fake.AddDeck(source, hosttest.Deck{Page: host.PageSize{Width: 960, Height: 540}, Slides: 1})

		_, err := newExporter(t, 9).Export(cancelled, launch(t, fake), source, filepath.Join(root, "g"))
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, fake.OpenPresentations())
	})
}
