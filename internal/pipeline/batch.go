package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
)

// ErrNoPresentations is returned when a directory holds no presentations.
var ErrNoPresentations = errors.New("no presentations found")

var presentationExtensions = []string{".pptx", ".ppt"}

// DiscoverPresentations finds the presentations directly inside dirPath. The
// search is case-insensitive and does not recurse. Office lock files (~$name)
// and picture-only decks produced by an earlier run are skipped.
func DiscoverPresentations(dirPath string) ([]string, error) {
	dirEntries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", dirPath, readErr)
	}

	var paths []string

	for _, entry := range dirEntries {
		if entry.IsDir() || !isPresentation(entry.Name()) {
			continue
		}

		paths = append(paths, filepath.Join(dirPath, entry.Name()))
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dirPath, ErrNoPresentations)
	}

	return paths, nil
}

func isPresentation(name string) bool {
	if strings.HasPrefix(name, "~$") {
		return false
	}

	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))

	if strings.HasSuffix(base, presentationSuffix) {
		return false
	}

	for _, known := range presentationExtensions {
		if ext == known {
			return true
		}
	}

	return false
}

// RunAll converts every path in order with the settings of template. A failed
// file is logged and does not stop the batch; the returned error joins every
// failure.
func (p *Pipeline) RunAll(ctx context.Context, paths []string, template Request) ([]*Result, error) {
	mainProgressBar := pb.New(len(paths)).
		SetTemplateString(`{{ bar . " " "━" "━" " " " "}} {{percent .}} {{rtime .}}`).
		SetWriter(p.config.ProgressBarOutput).
		Start()
	defer mainProgressBar.Finish()

	results := make([]*Result, 0, len(paths))

	var failures []error

	for _, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			failures = append(failures, ctxErr)

			break
		}

		mainProgressBar.Increment()
		p.log.Info("Starting processing for: %s", filepath.Base(path))

		req := template
		req.Source = path

		result, runErr := p.Run(ctx, req)
		if runErr != nil {
			p.log.Error("Failed to process %s: %v", filepath.Base(path), runErr)
			failures = append(failures, fmt.Errorf("%s: %w", filepath.Base(path), runErr))

			continue
		}

		results = append(results, result)
	}

	return results, errors.Join(failures...)
}
