// Package slideorder recovers slide order from exported image filenames.
package slideorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrNoImages is returned when a working directory holds no slide images.
var ErrNoImages = errors.New("no slide images found")

// slideNamePattern matches the exporter's Slide_<n>.<ext> names anywhere in a filename.
var slideNamePattern = regexp.MustCompile(`Slide_(\d+)\.([A-Za-z]+)`)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tif", ".tiff"}

// FileName returns the exporter's filename for a 1-based slide index.
func FileName(index int) string {
	return fmt.Sprintf("Slide_%d.png", index)
}

// IsImage reports whether name has a recognized image extension, ignoring case.
func IsImage(name string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(name)))
}

// SlideIndex extracts the slide number from a Slide_<digits>.<ext> filename.
// Names without a recoverable positive number map to 0 and sort first.
func SlideIndex(name string) int {
	match := slideNamePattern.FindStringSubmatch(filepath.Base(name))
	if match == nil || !IsImage("."+match[2]) {
		return 0
	}

	index, err := strconv.Atoi(match[1])
	if err != nil || index < 0 {
		return 0
	}

	return index
}

// Sort orders paths by SlideIndex. Equal indices keep their input order.
func Sort(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		return SlideIndex(a) - SlideIndex(b)
	})
}

// Collect lists the image files directly inside dir, ordered by slide index.
func Collect(dir string) ([]string, error) {
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", dir, readErr)
	}

	var paths []string

	for _, entry := range entries {
		if !entry.IsDir() && IsImage(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoImages)
	}

	Sort(paths)

	return paths, nil
}
