// Command pptx-to-pdf exports every slide of a presentation as an image and
// binds the images into <name>.pdf next to the source.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/book-expert/slide-flatten/internal/cli"
	"github.com/book-expert/slide-flatten/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	cmd := cli.NewCommand(
		"pptx-to-pdf",
		"Convert a presentation into an image-only PDF",
		pipeline.KindDocument,
		nil,
	)

	code := cli.Execute(ctx, cmd)

	stop()
	os.Exit(code)
}
