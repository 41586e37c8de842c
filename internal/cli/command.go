// Package cli implements the interactive conversion commands shared by the
// pptx-to-pdf and pptx-to-image-pptx binaries.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/book-expert/slide-flatten/internal/host"
	"github.com/book-expert/slide-flatten/internal/pipeline"
)

// ErrSourceRequired is returned when no presentation path was given.
var ErrSourceRequired = errors.New("a presentation path is required")

// ErrReported wraps failures that were already shown to the user.
var ErrReported = errors.New("conversion failed")

const (
	sourcePrompt = "Path of the .pptx file to convert: "
	dpiPrompt    = "Resolution in DPI (press Enter for 300): "
)

// NewCommand builds the conversion command for kind. launch starts the
// automation host; nil selects the platform host.
func NewCommand(use, short string, kind pipeline.Kind, launch host.Launcher) *cobra.Command {
	var flgs flags

	cmd := &cobra.Command{
		Use:           use + " [presentation]",
		Short:         short,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, flgs, kind, launch)
		},
	}

	cmd.Flags().StringVarP(&flgs.configPath, "config", "c", "", "path to project.toml")
	cmd.Flags().StringVar(&flgs.dpi, "dpi", "", "resolution in DPI for exported slides (default 300)")
	cmd.Flags().BoolVar(&flgs.keepImages, "keep-images", false, "keep the exported slide images")
	cmd.Flags().BoolVar(&flgs.hidden, "hidden", false, "run the presentation host without a window")

	return cmd
}

// Execute runs cmd and returns the process exit code.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if !errors.Is(err, ErrReported) {
		newConsole(os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr()).fail("%v", err)
	}

	return 1
}

func run(cmd *cobra.Command, args []string, flgs flags, kind pipeline.Kind, launch host.Launcher) error {
	term := newConsole(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())

	projectRoot, configPath := locateConfig(flgs.configPath)

	cfg, err := safeLoadConfig(configPath)
	if err != nil {
		return err
	}

	opts := mergeConfigAndFlags(&cfg, flgs, projectRoot)

	source, err := resolveSource(term, args)
	if err != nil {
		return err
	}

	info, statErr := os.Stat(source)
	if statErr != nil {
		return fmt.Errorf("%s: %w", source, pipeline.ErrSourceNotFound)
	}

	var batch []string

	if info.IsDir() {
		batch, err = pipeline.DiscoverPresentations(source)
		if err != nil {
			return err
		}
	}

	dpi, err := resolveDPI(term, opts.dpiInput)
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Source:     source,
		Kind:       kind,
		DPI:        dpi,
		KeepImages: opts.keepImages,
	}

	return withPipeline(cmd, term, &opts, launch, func(runner *pipeline.Pipeline) error {
		if batch != nil {
			return convertAll(cmd, term, runner, batch, req)
		}

		return convert(cmd, term, runner, req)
	})
}

func resolveSource(term *console, args []string) (string, error) {
	var raw string
	if len(args) > 0 {
		raw = args[0]
	} else {
		answer, err := term.ask(sourcePrompt)
		if err != nil {
			return "", err
		}

		raw = answer
	}

	source := CleanSourcePath(raw)
	if source == "" {
		return "", ErrSourceRequired
	}

	return source, nil
}

func resolveDPI(term *console, configured string) (int, error) {
	raw := configured
	if raw == "" {
		answer, err := term.ask(dpiPrompt)
		if err != nil {
			return 0, err
		}

		raw = answer
	}

	dpi, warn := ParseDPIInput(raw)
	if warn {
		term.warn("Invalid resolution %q, using the default of %d DPI", raw, dpi)
	}

	return dpi, nil
}

// withPipeline sets up the run logger and a pipeline, and hands them to fn.
func withPipeline(
	cmd *cobra.Command,
	term *console,
	opts *settings,
	launch host.Launcher,
	fn func(runner *pipeline.Pipeline) error,
) error {
	log, err := setupLogger(opts.projectRoot, opts.logDir)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}

	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			term.fail("failed to close logger: %v", closeErr)
		}
	}()

	runner := pipeline.New(&pipeline.Options{
		ProgressBarOutput: cmd.OutOrStdout(),
		Launch:            launch,
		Host:              host.Options{Hidden: opts.hidden},
	}, log)

	return fn(runner)
}

func convert(cmd *cobra.Command, term *console, runner *pipeline.Pipeline, req pipeline.Request) error {
	result, runErr := runner.Run(cmd.Context(), req)
	if runErr != nil {
		term.fail("%v", runErr)

		return fmt.Errorf("%w: %w", ErrReported, runErr)
	}

	reportResult(term, req, result)

	return nil
}

// convertAll converts every presentation of a directory, reporting each
// output, and fails if any file failed.
func convertAll(
	cmd *cobra.Command,
	term *console,
	runner *pipeline.Pipeline,
	paths []string,
	req pipeline.Request,
) error {
	results, runErr := runner.RunAll(cmd.Context(), paths, req)

	for _, result := range results {
		reportResult(term, req, result)
	}

	if runErr != nil {
		term.fail("%d of %d presentations failed:\n%v", len(paths)-len(results), len(paths), runErr)

		return fmt.Errorf("%w: %w", ErrReported, runErr)
	}

	return nil
}

func reportResult(term *console, req pipeline.Request, result *pipeline.Result) {
	if req.KeepImages {
		term.success("Slide images kept in: %s", result.Layout.ImageDir)
	}

	switch req.Kind {
	case pipeline.KindPresentation:
		term.success("Picture-only presentation saved to: %s", result.Layout.Output)
	default:
		term.success("PDF saved to: %s", result.Layout.Output)
	}
}
