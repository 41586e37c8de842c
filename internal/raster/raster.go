// Package raster decodes exported slide images, normalizes them to opaque RGB
// and analyzes their content.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // GIF decoder.
	_ "image/jpeg" // JPEG decoder.
	_ "image/png"  // PNG decoder.
	"os"

	_ "golang.org/x/image/bmp"  // BMP decoder.
	_ "golang.org/x/image/tiff" // TIFF decoder.
)

var (
	// ErrImageZeroPixels is returned when an image has no area.
	ErrImageZeroPixels = errors.New("image has zero pixels")
	// ErrInvalidFuzzPercent is returned for a fuzz percentage outside 0..100.
	ErrInvalidFuzzPercent = errors.New("fuzz percentage must be between 0 and 100")
	// ErrInvalidThreshold is returned for a non-white threshold outside 0..1.
	ErrInvalidThreshold = errors.New("non-white threshold must be between 0.0 and 1.0")
)

const (
	percentToRatio = 100.0
	maxColorValue  = 255.0
	bitsToShift    = 8

	// DefaultFuzzPercent tolerates off-white pixels up to 5% below pure white.
	DefaultFuzzPercent = 5
	// DefaultNonWhiteThreshold is the minimum non-white ratio for a slide to count as content.
	DefaultNonWhiteThreshold = 0.005
)

// BlankCriteria decides when an image is considered blank.
type BlankCriteria struct {
	// FuzzPercent is the tolerated deviation from pure white, 0..100.
	FuzzPercent int
	// NonWhiteThreshold is the minimum ratio of non-white pixels, 0..1, for content.
	NonWhiteThreshold float64
}

// DefaultBlankCriteria returns the criteria used by the exporter.
func DefaultBlankCriteria() BlankCriteria {
	return BlankCriteria{
		FuzzPercent:       DefaultFuzzPercent,
		NonWhiteThreshold: DefaultNonWhiteThreshold,
	}
}

// Validate checks the criteria ranges.
func (c BlankCriteria) Validate() error {
	if c.FuzzPercent < 0 || c.FuzzPercent > 100 {
		return fmt.Errorf("got %d: %w", c.FuzzPercent, ErrInvalidFuzzPercent)
	}

	if c.NonWhiteThreshold < 0 || c.NonWhiteThreshold > 1.0 {
		return fmt.Errorf("got %f: %w", c.NonWhiteThreshold, ErrInvalidThreshold)
	}

	return nil
}

// Open decodes the image at path. The file is closed before returning.
func Open(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file %s: %w", path, err)
	}
	defer file.Close()

	img, _, decodeErr := image.Decode(file)
	if decodeErr != nil {
		return nil, fmt.Errorf("could not decode image file %s: %w", path, decodeErr)
	}

	return img, nil
}

// Dimensions reads only the image header at path.
func Dimensions(path string) (image.Point, error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Point{}, fmt.Errorf("could not open file %s: %w", path, err)
	}
	defer file.Close()

	cfg, _, decodeErr := image.DecodeConfig(file)
	if decodeErr != nil {
		return image.Point{}, fmt.Errorf("could not read image header %s: %w", path, decodeErr)
	}

	return image.Point{X: cfg.Width, Y: cfg.Height}, nil
}

// ToRGB returns an opaque copy of img composited over white, anchored at the origin.
func ToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgb := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	draw.Draw(rgb, rgb.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, bounds.Min, draw.Over)

	return rgb
}

// IsBlank reports whether img has fewer non-white pixels than the criteria allow.
func IsBlank(img image.Image, criteria BlankCriteria) (bool, error) {
	bounds := img.Bounds()

	totalPixels := float64(bounds.Dx() * bounds.Dy())
	if totalPixels == 0 {
		return false, ErrImageZeroPixels
	}

	fuzzFactor := float64(criteria.FuzzPercent) / percentToRatio
	nonWhiteRatio := countNonWhitePixels(img, fuzzFactor) / totalPixels

	return nonWhiteRatio < criteria.NonWhiteThreshold, nil
}

func countNonWhitePixels(img image.Image, fuzzFactor float64) float64 {
	nonWhiteCount := 0.0
	whiteThreshold := uint32((1.0 - fuzzFactor) * maxColorValue)

	visitPixels(img, func(c color.Color) {
		if isNonWhite(c, whiteThreshold) {
			nonWhiteCount++
		}
	})

	return nonWhiteCount
}

func visitPixels(img image.Image, visitor func(c color.Color)) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			visitor(img.At(x, y))
		}
	}
}

// isNonWhite compares 8-bit channels against the white threshold.
func isNonWhite(c color.Color, whiteThreshold uint32) bool {
	r, g, b, _ := c.RGBA()
	r8, g8, b8 := r>>bitsToShift, g>>bitsToShift, b>>bitsToShift

	return r8 < whiteThreshold || g8 < whiteThreshold || b8 < whiteThreshold
}
