// Package pipeline runs one conversion end to end: export slides through the
// automation host, recover their order, and reassemble them into a PDF or a
// picture-only presentation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/slide-flatten/internal/assemble"
	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/slideexport"
	"github.com/book-expert/slide-flatten/internal/slideorder"
)

var (
	// ErrSourceNotFound is returned when the source presentation does not exist.
	ErrSourceNotFound = errors.New("source presentation does not exist")
	// ErrHostLaunch is returned when the automation host cannot be started.
	ErrHostLaunch = errors.New("failed to launch presentation host")
	// ErrUnknownKind is returned for an unsupported output kind.
	ErrUnknownKind = errors.New("unknown output kind")
	// ErrImageCountMismatch is returned when the working directory does not hold
	// exactly one image per exported slide.
	ErrImageCountMismatch = errors.New("slide image count does not match slide count")
)

// Kind selects the artifact a run produces.
type Kind int

const (
	// KindDocument produces <base>.pdf.
	KindDocument Kind = iota
	// KindPresentation produces <base>_图片版.pptx.
	KindPresentation
)

// String returns the kind's name as used in config and events.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "pdf"
	case KindPresentation:
		return "pptx"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps "pdf" or "pptx" (any case) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pdf":
		return KindDocument, nil
	case "pptx":
		return KindPresentation, nil
	default:
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownKind)
	}
}

// Options configures a Pipeline.
type Options struct {
	// ProgressBarOutput receives stage progress bars. Defaults to os.Stdout.
	ProgressBarOutput io.Writer
	// Launch starts the automation host. Defaults to host.Launch.
	Launch host.Launcher
	// Host is passed to Launch.
	Host host.Options
}

// Request describes one conversion.
type Request struct {
	Source string
	Kind   Kind
	DPI    int
	// KeepImages leaves the working directory in place after the run.
	KeepImages bool
}

// Result describes a finished conversion.
type Result struct {
	RunID  string
	Layout Layout
	Page   host.PageSize
	DPI    int
	Slides int
}

// Pipeline runs conversions. Runs are sequential; a Pipeline must not be used
// from several goroutines at once.
type Pipeline struct {
	log    *logger.Logger
	config Options
}

// New creates a Pipeline with defaults applied.
func New(opts *Options, log *logger.Logger) *Pipeline {
	if opts.ProgressBarOutput == nil {
		opts.ProgressBarOutput = os.Stdout
	}

	if opts.Launch == nil {
		opts.Launch = host.Launch
	}

	return &Pipeline{log: log, config: *opts}
}

// Run converts req.Source. The host is launched once and quit on every return
// path; the working directory is removed on every return path unless
// req.KeepImages is set.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	layout, layoutErr := DeriveLayout(req.Source, req.Kind)
	if layoutErr != nil {
		return nil, layoutErr
	}

	info, statErr := os.Stat(layout.Source)
	if statErr != nil || info.IsDir() {
		return nil, fmt.Errorf("%s: %w", layout.Source, ErrSourceNotFound)
	}

	runID := uuid.NewString()
	dpi := slideexport.NormalizeDPI(req.DPI)
	p.log.Info("Run [%s]: converting %s to %s at %d DPI", runID, layout.Source, req.Kind, dpi)

	app, launchErr := p.config.Launch(ctx, p.config.Host)
	if launchErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostLaunch, launchErr)
	}

	defer p.quitHost(runID, app)

	if !req.KeepImages {
		defer p.removeWorkDir(runID, layout.ImageDir)
	}

	result, runErr := p.convert(ctx, app, layout, req.Kind, dpi)
	if runErr != nil {
		p.log.Error("Run [%s]: %v", runID, runErr)

		return nil, runErr
	}

	result.RunID = runID
	p.log.Success("Run [%s]: wrote %s", runID, layout.Output)

	return result, nil
}

func (p *Pipeline) convert(
	ctx context.Context,
	app host.Application,
	layout Layout,
	kind Kind,
	dpi int,
) (*Result, error) {
	exporter := slideexport.NewExporter(&slideexport.Options{
		ProgressBarOutput: p.config.ProgressBarOutput,
		DPI:               dpi,
	}, p.log)

	exported, exportErr := exporter.Export(ctx, app, layout.Source, layout.ImageDir)
	if exportErr != nil {
		return nil, fmt.Errorf("export failed: %w", exportErr)
	}

	p.log.Info(
		"Exported %d slides at %dx%d px into %s",
		exported.Slides, exported.Width, exported.Height, exported.Dir,
	)

	images, collectErr := slideorder.Collect(exported.Dir)
	if collectErr != nil {
		return nil, fmt.Errorf("collect failed: %w", collectErr)
	}

	if len(images) != exported.Slides {
		return nil, fmt.Errorf(
			"%d images for %d slides in %s: %w",
			len(images), exported.Slides, exported.Dir, ErrImageCountMismatch,
		)
	}

	assembleOpts := &assemble.Options{ProgressBarOutput: p.config.ProgressBarOutput}

	var assembleErr error

	switch kind {
	case KindDocument:
		assembleErr = assemble.NewDocumentAssembler(assembleOpts, p.log).
			Assemble(ctx, images, layout.Output, exported.Page)
	case KindPresentation:
		assembleErr = assemble.NewPresentationAssembler(assembleOpts, p.log).
			Assemble(ctx, app, images, layout.Output, exported.Page)
	default:
		assembleErr = fmt.Errorf("%d: %w", kind, ErrUnknownKind)
	}

	if assembleErr != nil {
		return nil, fmt.Errorf("assembly of %s failed: %w", filepath.Base(layout.Output), assembleErr)
	}

	return &Result{
		Layout: layout,
		Page:   exported.Page,
		DPI:    dpi,
		Slides: len(images),
	}, nil
}

func (p *Pipeline) quitHost(runID string, app host.Application) {
	if err := app.Quit(); err != nil {
		p.log.Warn("Run [%s]: failed to quit host: %v", runID, err)
	}
}

func (p *Pipeline) removeWorkDir(runID, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		p.log.Warn("Run [%s]: failed to remove working directory '%s': %v", runID, dir, err)
	}
}
