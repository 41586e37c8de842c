package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	imageDirSuffix        = "_images"
	documentExtension     = ".pdf"
	presentationSuffix    = "_图片版"
	presentationExtension = ".pptx"
)

// Layout holds every path a run touches. All paths are absolute and siblings
// of the source presentation.
type Layout struct {
	Source   string
	Dir      string
	BaseName string
	ImageDir string
	Output   string
}

// DeriveLayout resolves source to an absolute path and derives the working
// directory and output path for kind.
func DeriveLayout(source string, kind Kind) (Layout, error) {
	absSource, absErr := filepath.Abs(source)
	if absErr != nil {
		return Layout{}, fmt.Errorf("could not resolve %s: %w", source, absErr)
	}

	dir, file := filepath.Split(absSource)
	dir = filepath.Clean(dir)
	baseName := strings.TrimSuffix(file, filepath.Ext(file))

	var output string

	switch kind {
	case KindDocument:
		output = filepath.Join(dir, baseName+documentExtension)
	case KindPresentation:
		output = filepath.Join(dir, baseName+presentationSuffix+presentationExtension)
	default:
		return Layout{}, fmt.Errorf("%d: %w", kind, ErrUnknownKind)
	}

	return Layout{
		Source:   absSource,
		Dir:      dir,
		BaseName: baseName,
		ImageDir: filepath.Join(dir, baseName+imageDirSuffix),
		Output:   output,
	}, nil
}
