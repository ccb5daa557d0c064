// Package cli implements the searchsync command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/searchsync/internal/app"
	"github.com/custodia-labs/searchsync/internal/logger"
)

// skipApp marks commands that run without wiring the application.
const skipApp = "searchsync/skip-app"

var (
	version = "dev"

	configPath string
	verbose    bool

	// application is the wired app used by commands.
	application *app.App
	// loadedConfig is the path the config was read from, empty for defaults.
	loadedConfig string
	// ownsApp is set when the CLI built application and must close it.
	ownsApp bool

	buildApp = app.Build
)

var rootCmd = &cobra.Command{
	Use:   "searchsync",
	Short: "Search indexing and sync for posts, users and comments",
	Long: `searchsync keeps a search index of posts, users and comments in step
with the primary store and serves ranked search, autocomplete and
query analytics on top of it.

Configuration is read from --config, or ~/.searchsync/config.toml when
present. SEARCHSYNC_* environment variables override the file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetApp injects a wired application. The CLI does not close it.
func SetApp(a *app.App) {
	application = a
	ownsApp = false
}

// Execute runs the root command and releases the application it built.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := closeApp(); closeErr != nil {
		logger.Error("shutdown: %v", closeErr)
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd.Annotations[skipApp] == "true" || application != nil {
		return nil
	}

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("starting searchsync: %w", err)
	}
	application = a
	loadedConfig = path
	ownsApp = true
	return nil
}

// loadConfig reads --config, falling back to the default path when it exists.
func loadConfig() (file.Config, string, error) {
	path := configPath
	if path == "" {
		if def, err := file.DefaultPath(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}

	cfg, err := file.Load(path)
	if err != nil {
		return file.Config{}, "", fmt.Errorf("loading config: %w", err)
	}
	if path != "" {
		logger.Debug("config loaded from %s", path)
	}
	return cfg, path, nil
}

func closeApp() error {
	if !ownsApp || application == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := application.Close(ctx)
	application = nil
	ownsApp = false
	return err
}

// requireApp returns the wired application.
func requireApp() (*app.App, error) {
	if application == nil {
		return nil, errors.New("application not configured")
	}
	return application, nil
}
