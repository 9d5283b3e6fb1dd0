package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmurray2011/watchman/internal/ui"
)

// maxLineBytes bounds a single input line; longer lines are truncated.
// CloudWatch events are cut far below this anyway.
const maxLineBytes = 1024 * 1024

var pipeDrainTimeout time.Duration

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "Forward stdin to CloudWatch Logs line by line",
	Long: `Read standard input and send every line as its own log event.

Lines are echoed to stdout as they are read (disable with echo: false).
Blank lines are skipped and lines over 1 MiB are truncated. On EOF or interrupt, pipe waits up to
--drain-timeout for queued events before exiting. A summary is printed
to stderr unless --quiet is set.

Examples:
  ./server 2>&1 | watchman pipe -g /app/web -s web-1

  # Keep color codes out of CloudWatch but leave the prefix intact
  WATCHMAN_STRIP_PREFIX=false tail -F app.log | watchman pipe`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipe(cmd.Context(), GetApp(cmd), cmd.InOrStdin(), pipeDrainTimeout)
	},
}

func init() {
	rootCmd.AddCommand(pipeCmd)
	pipeCmd.Flags().DurationVar(&pipeDrainTimeout, "drain-timeout", DefaultDrainTimeout, "How long to wait for queued events on exit")
}

func runPipe(ctx context.Context, app *App, in io.Reader, drain time.Duration) error {
	wm, err := app.OpenSink(ctx)
	if err != nil {
		return err
	}

	id := wm.Identity()
	app.Render.Status("Piping to %s", app.Render.Stream(id.String()))

	stats, readErr := pipeLines(ctx, in, wm.Writer())
	if ctx.Err() != nil {
		app.Render.Status("Interrupted, draining...")
	}
	app.Drain(wm, drain)

	app.Render.RenderSummary(ui.Summary{
		Stream:    id.String(),
		Lines:     stats.lines,
		Skipped:   stats.blank,
		Truncated: stats.truncated,
		Dropped:   wm.Dropped(),
		Pending:   wm.Pending(),
	})

	if readErr != nil {
		return fmt.Errorf("failed to read input: %w", readErr)
	}
	return nil
}

type pipeStats struct {
	lines     int
	blank     int
	truncated int
}

type pipeLine struct {
	text      string
	truncated bool
}

// pipeLines copies r to w one line per Write until EOF or ctx ends.
// Lines longer than maxLineBytes are cut short and the rest of the line is
// discarded; reading carries on with the next line. Cancellation is not an
// error.
func pipeLines(ctx context.Context, r io.Reader, w io.Writer) (pipeStats, error) {
	lines := make(chan pipeLine)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		br := bufio.NewReaderSize(r, 64*1024)
		var buf []byte
		cut := false
		for {
			chunk, more, err := br.ReadLine()
			if err == io.EOF && len(buf) > 0 {
				chunk, more, err = nil, false, nil
			}
			if err != nil {
				if err == io.EOF {
					err = nil
				}
				errc <- err
				return
			}

			if room := maxLineBytes - len(buf); len(chunk) > room {
				chunk = chunk[:room]
				cut = true
			}
			buf = append(buf, chunk...)
			if more {
				continue
			}

			line := pipeLine{text: string(buf), truncated: cut}
			buf, cut = buf[:0], false

			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
	}()

	var stats pipeStats
	for {
		select {
		case <-ctx.Done():
			return stats, nil
		case pl, ok := <-lines:
			if !ok {
				return stats, <-errc
			}
			line := pl.text
			if pl.truncated {
				stats.truncated++
			}
			if strings.TrimSpace(line) == "" {
				stats.blank++
				continue
			}
			_, _ = w.Write([]byte(line))
			stats.lines++
		}
	}
}
