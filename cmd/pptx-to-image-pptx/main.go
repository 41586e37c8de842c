// Command pptx-to-image-pptx rebuilds a presentation as <name>_图片版.pptx,
// where every slide is a single full-page picture of the source slide.
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
		"pptx-to-image-pptx",
		"Convert a presentation into a picture-only presentation",
		pipeline.KindPresentation,
		nil,
	)

	code := cli.Execute(ctx, cmd)

	stop()
	os.Exit(code)
}
