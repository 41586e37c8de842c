package main

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/slide-flatten/internal/raster"
)

func writeImage(t *testing.T, path string, fill color.Color) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
}

func TestParseAndValidateArguments(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		want    arguments
		wantErr error
	}{
		{
			name: "Happy Path: Valid arguments",
			args: []string{"./slide-inspect", "deck_images", "10", "0.1"},
			want: arguments{
				dir:      "deck_images",
				criteria: raster.BlankCriteria{FuzzPercent: 10, NonWhiteThreshold: 0.1},
			},
		},
		{
			name:    "Error: Too few arguments",
			args:    []string{"./slide-inspect", "deck_images"},
			wantErr: ErrInvalidArguments,
		},
		{
			name:    "Error: Too many arguments",
			args:    []string{"./slide-inspect", "a", "b", "c", "d"},
			wantErr: ErrInvalidArguments,
		},
		{
			name:    "Error: Fuzz out of range",
			args:    []string{"./slide-inspect", "dir", "101", "0.1"},
			wantErr: raster.ErrInvalidFuzzPercent,
		},
		{
			name:    "Error: Threshold out of range",
			args:    []string{"./slide-inspect", "dir", "5", "1.5"},
			wantErr: raster.ErrInvalidThreshold,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := parseAndValidateArguments(testCase.args)
			if testCase.wantErr != nil {
				require.ErrorIs(t, err, testCase.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.want, result)
		})
	}

	_, err := parseAndValidateArguments([]string{"./slide-inspect", "dir", "ten", "0.1"})
	require.Error(t, err)

	_, err = parseAndValidateArguments([]string{"./slide-inspect", "dir", "10", "half"})
	require.Error(t, err)
}

func TestRun_ReportsInSlideOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "Slide_10.png"), color.Black)
	writeImage(t, filepath.Join(dir, "Slide_2.png"), color.RGBA{R: 200, A: 255})
	writeImage(t, filepath.Join(dir, "Slide_1.png"), color.RGBA{B: 200, A: 255})

	var stdout, stderr bytes.Buffer

	code := run([]string{"slide-inspect", dir, "5", "0.005"}, &stdout, &stderr)
	require.Equal(t, exitCodeContent, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Slide_1.png")
	assert.Contains(t, lines[1], "Slide_2.png")
	assert.Contains(t, lines[2], "Slide_10.png")
	assert.Contains(t, lines[0], "16x9")
	assert.Equal(t, "3 slides, 0 blank", lines[3])
}

func TestRun_BlankSlide(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "Slide_1.png"), color.Black)
	writeImage(t, filepath.Join(dir, "Slide_2.png"), color.White)

	var stdout, stderr bytes.Buffer

	code := run([]string{"slide-inspect", dir, "5", "0.005"}, &stdout, &stderr)
	assert.Equal(t, exitCodeBlank, code)
	assert.Contains(t, stdout.String(), "2 slides, 1 blank")
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	assert.Equal(t, exitCodeError, run([]string{"slide-inspect"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Argument error")

	stderr.Reset()
	assert.Equal(t, exitCodeError, run([]string{"slide-inspect", t.TempDir(), "5", "0.005"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "no slide images found")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Slide_1.png"), []byte("not a png"), 0o600))

	stderr.Reset()
	assert.Equal(t, exitCodeError, run([]string{"slide-inspect", dir, "5", "0.005"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Inspection error")
}
