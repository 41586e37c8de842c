package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/book-expert/slide-flatten/internal/slideexport"
)

// CleanSourcePath strips surrounding whitespace and quote characters, as left
// behind by drag-and-drop or copy-as-path.
func CleanSourcePath(raw string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
}

// ParseDPIInput interprets a DPI answer. Blank input selects the default
// silently; non-numeric or non-positive input selects the default and reports
// warn so the caller can tell the user.
func ParseDPIInput(raw string) (dpi int, warn bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return slideexport.DefaultDPI, false
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil || value <= 0 {
		return slideexport.DefaultDPI, true
	}

	return value, false
}

// console is the interactive surface: prompts on in, status on out, failures on errOut.
type console struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func newConsole(in io.Reader, out, errOut io.Writer) *console {
	return &console{in: bufio.NewReader(in), out: out, errOut: errOut}
}

// ask prints label and returns one line of input. End of input yields an empty
// answer rather than an error.
func (c *console) ask(label string) (string, error) {
	_, _ = color.New(color.FgCyan).Fprint(c.out, label)

	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	if errors.Is(err, io.EOF) {
		_, _ = fmt.Fprintln(c.out)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (c *console) success(format string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(c.out, "✓ "+format+"\n", args...)
}

func (c *console) warn(format string, args ...any) {
	_, _ = color.New(color.FgYellow).Fprintf(c.out, "⚠ "+format+"\n", args...)
}

func (c *console) fail(format string, args ...any) {
	_, _ = color.New(color.FgRed).Fprintf(c.errOut, "✗ "+format+"\n", args...)
}
