package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	wmerrors "github.com/jmurray2011/watchman/internal/errors"
)

var emitLevel string

var emitLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}

var emitCmd = &cobra.Command{
	Use:   "emit [message...]",
	Short: "Send one structured log line",
	Long: `Log a single message through a zerolog console logger whose output is
the configured stream. The logger's timestamp is removed by the sink, so
the event reads "INF message".

Examples:
  watchman emit -g /app/web -s web-1 "deploy finished"
  watchman emit --level error "backup failed"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEmit(cmd.Context(), GetApp(cmd), emitLevel, args)
	},
}

func init() {
	rootCmd.AddCommand(emitCmd)
	emitCmd.Flags().StringVarP(&emitLevel, "level", "l", "info", "Level: "+strings.Join(emitLevels, ", "))
	_ = emitCmd.RegisterFlagCompletionFunc("level", fixedCompletion(emitLevels))
}

func runEmit(ctx context.Context, app *App, level string, args []string) error {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return wmerrors.MissingFlagError("message", "text to log", []string{
			`watchman emit "deploy finished"`,
			`watchman emit --level warn "disk almost full"`,
		})
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel || lvl == zerolog.Disabled {
		return wmerrors.InvalidChoiceError("level", level, emitLevels, "Valid levels: "+strings.Join(emitLevels, ", "))
	}

	wm, err := app.OpenSink(ctx)
	if err != nil {
		return err
	}
	defer app.Drain(wm, DefaultDrainTimeout)

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        wm.Writer(),
		NoColor:    app.NoColor,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	logger.WithLevel(lvl).Msg(message)
	return nil
}
