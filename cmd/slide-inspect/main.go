// Command slide-inspect lists the slide images of a working directory in
// presentation order and reports which of them are blank.
//
// Usage: slide-inspect <dir> <fuzz_percent> <non_white_threshold>
// - fuzz_percent: 0..100 tolerated deviation from pure white (higher = more tolerant)
// - non_white_threshold: 0.0..1.0 minimum ratio of non-white pixels to consider content
//
// Exit codes:
//
//	0 = every slide has content
//	1 = at least one slide is blank
//	2 = error (bad args, unreadable directory or image, etc.)
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"

	"github.com/book-expert/slide-flatten/internal/raster"
	"github.com/book-expert/slide-flatten/internal/slideorder"
)

// ErrInvalidArguments is returned for a wrong argument count.
var ErrInvalidArguments = errors.New("invalid number of arguments")

// arguments holds the parsed and validated command-line arguments.
type arguments struct {
	dir      string
	criteria raster.BlankCriteria
}

// slideReport is the inspection result of one image.
type slideReport struct {
	index  int
	name   string
	width  int
	height int
	blank  bool
}

const (
	exitCodeContent = 0
	exitCodeBlank   = 1
	exitCodeError   = 2

	expectedArgCount = 4
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	args, err := parseAndValidateArguments(argv)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Argument error: %v\n", err)

		return exitCodeError
	}

	reports, err := inspectDir(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Inspection error: %v\n", err)

		return exitCodeError
	}

	blankCount := printReports(stdout, reports)
	if blankCount > 0 {
		return exitCodeBlank
	}

	return exitCodeContent
}

// parseAndValidateArguments processes the raw command-line arguments.
func parseAndValidateArguments(args []string) (arguments, error) {
	if len(args) != expectedArgCount {
		return arguments{}, fmt.Errorf(
			"expected 3 arguments, but got %d. Usage: <program> <dir> <fuzz_percent> <threshold>: %w",
			len(args)-1,
			ErrInvalidArguments,
		)
	}

	fuzzPercent, err := strconv.Atoi(args[2])
	if err != nil {
		return arguments{}, fmt.Errorf("invalid fuzz percentage '%s': %w", args[2], err)
	}

	threshold, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return arguments{}, fmt.Errorf("invalid non-white threshold '%s': %w", args[3], err)
	}

	criteria := raster.BlankCriteria{FuzzPercent: fuzzPercent, NonWhiteThreshold: threshold}
	if validateErr := criteria.Validate(); validateErr != nil {
		return arguments{}, validateErr
	}

	return arguments{dir: args[1], criteria: criteria}, nil
}

// inspectDir collects the ordered images of args.dir and checks each one.
func inspectDir(args arguments) ([]slideReport, error) {
	images, err := slideorder.Collect(args.dir)
	if err != nil {
		return nil, err
	}

	reports := make([]slideReport, 0, len(images))

	for _, imagePath := range images {
		report, inspectErr := inspectImage(imagePath, args.criteria)
		if inspectErr != nil {
			return nil, inspectErr
		}

		reports = append(reports, report)
	}

	return reports, nil
}

func inspectImage(imagePath string, criteria raster.BlankCriteria) (slideReport, error) {
	img, err := raster.Open(imagePath)
	if err != nil {
		return slideReport{}, err
	}

	blank, err := raster.IsBlank(img, criteria)
	if err != nil {
		return slideReport{}, fmt.Errorf("%s: %w", imagePath, err)
	}

	name := filepath.Base(imagePath)
	bounds := img.Bounds()

	return slideReport{
		index:  slideorder.SlideIndex(name),
		name:   name,
		width:  bounds.Dx(),
		height: bounds.Dy(),
		blank:  blank,
	}, nil
}

// printReports writes one line per slide in order and returns the number of
// blank slides. Images without a slide number are listed with index 0.
func printReports(out io.Writer, reports []slideReport) int {
	blankCount := 0
	blankLabel := color.New(color.FgYellow).Sprint("blank")
	contentLabel := color.New(color.FgGreen).Sprint("content")

	for _, report := range reports {
		label := contentLabel
		if report.blank {
			label = blankLabel
			blankCount++
		}

		_, _ = fmt.Fprintf(out, "%3d  %-20s %5dx%-5d %s\n",
			report.index, report.name, report.width, report.height, label)
	}

	_, _ = fmt.Fprintf(out, "%d slides, %d blank\n", len(reports), blankCount)

	return blankCount
}
