package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/torosent/gcpressure/internal/config"
	"github.com/torosent/gcpressure/internal/livefeed"
	"github.com/torosent/gcpressure/internal/output"
	"github.com/torosent/gcpressure/internal/workload"
)

// runGenerateDocument writes a synthetic JSON workload document.
func runGenerateDocument(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("generate-document", pflag.ContinueOnError)
	fs.SetOutput(stdout)
	out := fs.StringP("output", "o", config.DefaultDocumentName, "Path of the generated document")
	size := fs.String("size", humanize.IBytes(workload.DefaultDocumentSize), "Approximate document size (e.g. 300KiB)")
	seed := fs.Int64("seed", 1, "Seed for document contents")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	n, err := humanize.ParseBytes(*size)
	if err != nil {
		return fmt.Errorf("size: %w", err)
	}

	if dir := filepath.Dir(*out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if err := workload.GenerateDocument(f, int(n), *seed); err != nil {
		f.Close()
		return fmt.Errorf("generate document: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}

	info, err := os.Stat(*out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s (%s)\n", *out, humanize.IBytes(uint64(info.Size())))
	return nil
}

// runWatch follows the live feed of a run started with --metrics-addr and
// prints one progress line per frame.
func runWatch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: gcpressure watch ws://host:port/live")
	}

	client := livefeed.NewClient(livefeed.Config{URL: fs.Arg(0)})
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	for {
		frame, err := client.Next(ctx)
		if err != nil {
			if errors.Is(err, livefeed.ErrFeedClosed) || ctx.Err() != nil {
				fmt.Fprintf(stdout, "Feed ended after %d frames\n", client.Frames())
				return nil
			}
			return err
		}
		fmt.Fprintf(stdout, "%s  %s\n", frame.Time.Format(output.SlowTimeLayout), output.FormatProgress(frame.Stats))
	}
}
