package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmurray2011/watchman/internal/config"
	"github.com/jmurray2011/watchman/internal/logging"
	"github.com/jmurray2011/watchman/internal/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
	quiet   bool

	// render is the global renderer for all output
	render *ui.Renderer
)

var rootCmd = &cobra.Command{
	Use:   "watchman",
	Short: "Ship log lines to CloudWatch Logs",
	Long: `watchman - a log sink that forwards lines to an AWS CloudWatch Logs stream.

Every line is sent as its own event without blocking the writer. The
first space-separated token (usually a timestamp added by the logger) and
ANSI color codes are removed before sending. Delivery failures are never
reported back to the writer; run with --verbose to see them.

Configuration:
  Settings are read from flags, WATCHMAN_* environment variables and
  ~/.watchman.yaml, in that order of precedence. Run 'watchman init' to
  create the file.

    log_group: /app/web
    log_stream: web-1
    workers: 4
    queue_size: 1024
    task_timeout: 10s
    strip_prefix: true
    strip_mode: csi     # csi, all, none
    echo: true

Examples:
  # Create group and stream, show where logs will go
  watchman provision -g /app/web -s web-1

  # Forward a process's output
  ./server 2>&1 | watchman pipe -g /app/web -s web-1

  # Send a single structured line
  watchman emit --level warn "disk almost full"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so pipe can drain before exiting.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion sets the version string for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initConfig, initRenderer, initLogging)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ~/.watchman.yaml)")
	flags.StringP("profile", "p", "", "AWS profile")
	flags.StringP("region", "r", "", "AWS region")
	flags.String("endpoint", "", "CloudWatch Logs endpoint override (e.g. LocalStack)")
	flags.StringP("group", "g", "", "Log group name")
	flags.StringP("stream", "s", "", "Log stream name")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&quiet, "quiet", false, "Suppress status messages")

	// Bind flags to viper
	_ = viper.BindPFlag("profile", flags.Lookup("profile"))
	_ = viper.BindPFlag("region", flags.Lookup("region"))
	_ = viper.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = viper.BindPFlag("log_group", flags.Lookup("group"))
	_ = viper.BindPFlag("log_stream", flags.Lookup("stream"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

func initConfig() {
	v := viper.GetViper()
	config.Setup(v, cfgFile)
	if err := config.Read(v); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// initRenderer initializes the global renderer with current settings.
func initRenderer() {
	render = ui.NewRendererWithOptions(
		ui.WithNoColor(colorDisabled()),
		ui.WithQuiet(quiet),
	)
}

// initLogging points the default logger at stderr at the level the flags ask for.
func initLogging() {
	var l logging.Logger
	if colorDisabled() {
		l = logging.NewWithOutput(os.Stderr)
	} else {
		l = logging.New()
	}

	switch {
	case IsVerbose():
		l.SetLevel(logging.LevelDebug)
	case quiet:
		l.SetLevel(logging.LevelError)
	}
	logging.SetDefault(l)
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return verbose || viper.GetBool("verbose")
}

func colorDisabled() bool {
	return noColor || os.Getenv("NO_COLOR") != ""
}
