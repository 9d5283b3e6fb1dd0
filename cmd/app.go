package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmurray2011/watchman/internal/cloudwatch"
	"github.com/jmurray2011/watchman/internal/config"
	"github.com/jmurray2011/watchman/internal/logging"
	"github.com/jmurray2011/watchman/internal/ui"
	"github.com/jmurray2011/watchman/pkg/watchman"
)

// appContextKey is the context key for the App instance.
type appContextKey struct{}

// DefaultDrainTimeout bounds how long commands wait for queued batches on exit.
const DefaultDrainTimeout = 30 * time.Second

// SinkFactory builds the Watchman a command writes through. cfg carries
// credentials and the stream identity; opts are already derived from it.
type SinkFactory func(ctx context.Context, cfg config.Config, opts ...watchman.Option) (*watchman.Watchman, error)

// Identifier resolves the region and account a configuration targets.
type Identifier func(ctx context.Context, cfg config.Config) (region, account string, err error)

// App holds the application dependencies that can be injected for testing.
type App struct {
	Config  config.Config
	Render  *ui.Renderer
	Logger  logging.Logger
	NewSink SinkFactory
	Resolve Identifier
	NoColor bool
}

// NewApp creates a new App with configuration from viper and AWS-backed sinks.
func NewApp() *App {
	r := render
	if r == nil {
		r = ui.NewRenderer()
	}
	return &App{
		Config:  config.Load(viper.GetViper()),
		Render:  r,
		Logger:  logging.Default(),
		NewSink: newAWSSink,
		Resolve: resolveAWSIdentity,
		NoColor: colorDisabled(),
	}
}

// GetApp retrieves the App from the command context.
// If no App is set, it creates a new default one.
func GetApp(cmd *cobra.Command) *App {
	if ctx := cmd.Context(); ctx != nil {
		if app, ok := ctx.Value(appContextKey{}).(*App); ok {
			return app
		}
	}
	return NewApp()
}

// SetApp stores the App in the context for a command.
func SetApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appContextKey{}, app)
}

// OpenSink validates the configuration and builds a Watchman for it.
// Echoed lines go to the renderer's output; extra options are applied last.
func (a *App) OpenSink(ctx context.Context, extra ...watchman.Option) (*watchman.Watchman, error) {
	if err := a.Config.Validate(); err != nil {
		return nil, err
	}

	opts := append(a.Config.Options(), watchman.WithLogger(a.Logger))
	if a.Config.Echo {
		opts = append(opts, watchman.WithEcho(a.Render.Out()))
	}
	opts = append(opts, extra...)

	a.Logger.Debug("opening sink for %s/%s", a.Config.LogGroup, a.Config.LogStream)
	return a.NewSink(ctx, a.Config, opts...)
}

// Drain closes wm, waiting up to timeout for queued batches. It warns
// about anything left undelivered.
func (a *App) Drain(wm *watchman.Watchman, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := wm.Close(ctx); err != nil {
		a.Render.Warning("gave up waiting for %d batches after %s", wm.Pending(), timeout)
	}
}

func newAWSSink(ctx context.Context, cfg config.Config, opts ...watchman.Option) (*watchman.Watchman, error) {
	awsCfg, err := cloudwatch.LoadAWSConfig(ctx, cfg.Profile, cfg.Region)
	if err != nil {
		return nil, err
	}
	return watchman.New(ctx, awsCfg, cfg.LogGroup, cfg.LogStream, opts...)
}

func resolveAWSIdentity(ctx context.Context, cfg config.Config) (string, string, error) {
	awsCfg, err := cloudwatch.LoadAWSConfig(ctx, cfg.Profile, cfg.Region)
	if err != nil {
		return "", "", err
	}
	account, err := cloudwatch.GetAccountID(ctx, awsCfg)
	return awsCfg.Region, account, err
}
