package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/searchsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/searchsync/internal/adapters/driving/mcp"
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
	"github.com/custodia-labs/searchsync/internal/logger"
)

var (
	serveMCPAddr     string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler, MCP server and metrics endpoint",
	Long: `Initialises the index, runs the initial full sync and then keeps the
index current with periodic incremental syncs until interrupted.

The MCP server (streamable HTTP) and the Prometheus /metrics endpoint
listen on the addresses from the [server] config section; pass an empty
address to disable either. Edits to the config file's sync interval are
applied without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMCPAddr, "mcp-addr", "", "MCP listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "metrics listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mcpAddr := a.Config.Server.MCPAddr
	if cmd.Flags().Changed("mcp-addr") {
		mcpAddr = serveMCPAddr
	}
	metricsAddr := a.Config.Server.MetricsAddr
	if cmd.Flags().Changed("metrics-addr") {
		metricsAddr = serveMetricsAddr
	}

	if err := a.Scheduler.Initialize(ctx); err != nil {
		return fmt.Errorf("initialise sync: %w", err)
	}
	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := a.Scheduler.Stop(); err != nil {
			logger.Warn("stop scheduler: %v", err)
		}
	}()

	if loadedConfig != "" {
		w, err := file.Watch(loadedConfig, a.Config, func(prev, next file.Config) {
			applyConfigChange(a.Scheduler, prev, next)
		})
		if err != nil {
			logger.Warn("config changes will not be applied: %v", err)
		} else {
			defer w.Close()
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if metricsAddr != "" && a.Telemetry != nil {
		g.Go(func() error {
			return a.Telemetry.Serve(gctx, metricsAddr)
		})
	}

	if mcpAddr != "" {
		server, err := mcp.NewServer(&mcp.Ports{
			Search:    a.Search,
			Suggest:   a.Suggest,
			Scheduler: a.Scheduler,
			Analytics: a.Analytics,
		})
		if err != nil {
			return err
		}
		cmd.Printf("MCP server listening on http://%s\n", mcpAddr)
		g.Go(func() error {
			return server.RunHTTP(gctx, mcpAddr)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	cmd.Println("searchsync running, press Ctrl+C to stop.")
	err = g.Wait()
	if ctx.Err() != nil && err == nil {
		cmd.Println("Shutting down.")
	}
	return err
}

// applyConfigChange applies settings that can change at runtime.
func applyConfigChange(s driving.SyncScheduler, prev, next file.Config) {
	if next.Sync.Interval != prev.Sync.Interval {
		if err := s.SetSyncInterval(next.Sync.Interval.Std()); err != nil {
			logger.Warn("apply sync interval: %v", err)
		}
	}
	if next.Index.Backend != prev.Index.Backend || next.State.Backend != prev.State.Backend {
		logger.Warn("backend changes take effect after a restart")
	}
}
