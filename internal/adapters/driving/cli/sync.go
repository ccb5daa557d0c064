package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
	"github.com/custodia-labs/searchsync/internal/logger"
)

var (
	syncFull  bool
	syncTypes string
	syncJSON  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the index with the primary store",
	Long: `Runs one sync pass now.

Without flags, re-indexes records modified since the last pass. With
--full, re-indexes every record of the selected entity types.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "re-index every record")
	syncCmd.Flags().StringVarP(&syncTypes, "type", "t", "all", "entity types for a full sync")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}
	if !syncFull && cmd.Flags().Changed("type") {
		return fmt.Errorf("%w: --type requires --full", domain.ErrInvalidInput)
	}

	entities, err := domain.ParseEntityFilter(syncTypes)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := a.Engine.EnsureIndices(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if err := a.Engine.LoadWatermark(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Starting without watermark: %v", err)
	}

	var report *domain.SyncReport
	if syncFull {
		if !syncJSON {
			cmd.Printf("Full sync of %s...\n", domain.EntityNames(entities))
		}
		report, err = a.Scheduler.TriggerFull(ctx, entities)
	} else {
		if !syncJSON {
			cmd.Println("Incremental sync...")
		}
		report, err = a.Scheduler.TriggerIncremental(ctx)
	}

	if report != nil {
		if syncJSON {
			if jerr := outputJSON(cmd, report); jerr != nil {
				return jerr
			}
		} else {
			printSyncReport(cmd, report)
		}
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func printSyncReport(cmd *cobra.Command, r *domain.SyncReport) {
	entities := make([]domain.EntityType, 0, len(r.Entities))
	for e := range r.Entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })

	for _, e := range entities {
		c := r.Entities[e]
		cmd.Printf("  %-8s %d synced, %d failed\n", e, c.Synced, c.Failed)
	}
	cmd.Printf("Synced %d documents (%d failed) in %s.\n",
		r.Synced(), r.Failed(), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
