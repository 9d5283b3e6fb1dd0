package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jmurray2011/watchman/pkg/watchman"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the log group and stream",
	Long: `Create the configured log group and stream if they do not exist and
show which region and account they live in.

Unlike pipe and emit, provision reports provisioning failures and exits
non-zero when any occur. Groups and streams that already exist are fine.

Examples:
  watchman provision -g /app/web -s web-1
  watchman provision -g /app/web -s web-1 --endpoint http://localhost:4566`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProvision(cmd.Context(), GetApp(cmd))
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(ctx context.Context, app *App) error {
	var mu sync.Mutex
	var failures []string
	handler := func(op string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, fmt.Sprintf("%s: %v", op, err))
	}

	app.Render.Status("Provisioning %s/%s...", app.Config.LogGroup, app.Config.LogStream)

	wm, err := app.OpenSink(ctx, watchman.WithErrorHandler(handler), watchman.WithEcho(nil))
	if err != nil {
		return err
	}
	app.Drain(wm, DefaultDrainTimeout)

	id := wm.Identity()
	app.Render.Section("Log stream")
	app.Render.KeyValue("Group", app.Render.Stream(id.Group))
	app.Render.KeyValue("Stream", app.Render.Stream(id.Stream))

	if app.Resolve != nil {
		region, account, err := app.Resolve(ctx, app.Config)
		if err != nil {
			app.Logger.Debug("failed to resolve account: %v", err)
		}
		if region != "" {
			app.Render.KeyValue("Region", region)
		}
		if account != "" {
			app.Render.KeyValue("Account", account)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) > 0 {
		for _, f := range failures {
			app.Render.Error("%s", f)
		}
		return fmt.Errorf("provisioning reported %d error(s)", len(failures))
	}

	app.Render.Success("Ready")
	return nil
}
