package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

const statusHistoryLimit = 5

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and sync status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Backend   string              `json:"backend"`
	Reachable bool                `json:"reachable"`
	Error     string              `json:"error,omitempty"`
	Watermark *time.Time          `json:"watermark,omitempty"`
	History   []domain.TaskResult `json:"history"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	report := statusReport{Backend: a.Config.Index.Backend, Reachable: true}
	if err := a.Engine.Ping(ctx); err != nil {
		report.Reachable = false
		report.Error = err.Error()
	}

	if err := a.Engine.LoadWatermark(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if wm := a.Engine.Watermark(); !wm.IsZero() {
		report.Watermark = &wm
	}

	report.History, err = a.Scheduler.History(ctx, statusHistoryLimit)
	if err != nil {
		return err
	}
	if report.History == nil {
		report.History = []domain.TaskResult{}
	}

	if statusJSON {
		return outputJSON(cmd, report)
	}

	if report.Reachable {
		cmd.Printf("Index:     %s (reachable)\n", report.Backend)
	} else {
		cmd.Printf("Index:     %s (unavailable: %s)\n", report.Backend, report.Error)
	}
	if report.Watermark != nil {
		cmd.Printf("Watermark: %s\n", report.Watermark.UTC().Format(time.RFC3339))
	} else {
		cmd.Println("Watermark: none (next incremental sync uses the default window)")
	}

	if len(report.History) == 0 {
		cmd.Println("No sync passes recorded.")
		return nil
	}
	cmd.Println()
	cmd.Println("Recent passes:")
	for _, r := range report.History {
		outcome := "ok"
		if !r.Success {
			outcome = "failed: " + r.Error
		}
		cmd.Printf("  %s  %-16s %d synced, %d failed  %s\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.TaskID, r.ItemsProcessed, r.ItemsFailed, outcome)
	}
	return nil
}
