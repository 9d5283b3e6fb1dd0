package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmurray2011/watchman/internal/config"
	"github.com/jmurray2011/watchman/internal/ui"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize watchman configuration",
	Long: `Create a configuration file with the default settings.

Group, stream and AWS settings given as flags are written into the file.
The file is created at --config when set, otherwise ~/.watchman.yaml.

Examples:
  # Create default config (won't overwrite existing)
  watchman init

  # Pre-fill the stream and overwrite an existing file
  watchman init -g /app/web -s web-1 --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return err
			}
		}
		app := GetApp(cmd)
		return runInit(app.Render, path, app.Config, initForce)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
}

func runInit(r *ui.Renderer, path string, cfg config.Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			r.Info("  %s already exists (use --force to overwrite)", path)
			return nil
		}
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	r.Success("Created %s", path)
	if cfg.LogGroup == "" || cfg.LogStream == "" {
		r.Info("\nSet log_group and log_stream in %s before running pipe or emit.", path)
	}
	return nil
}
