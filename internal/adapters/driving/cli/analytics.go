package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

var (
	analyticsDays int
	analyticsJSON bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarise logged searches",
	Long: `Reports search volume, unique queries, latency, zero-result rate,
the most frequent queries and the click-through rate over the last days.`,
	Args: cobra.NoArgs,
	RunE: runAnalytics,
}

var analyticsTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show daily search volume",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsTrends,
}

var analyticsUserCmd = &cobra.Command{
	Use:   "user [user-id]",
	Short: "Show one user's search behaviour",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyticsUser,
}

func init() {
	analyticsCmd.PersistentFlags().IntVar(&analyticsDays, "days", 7, "look-back window in days")
	analyticsCmd.PersistentFlags().BoolVar(&analyticsJSON, "json", false, "output as JSON")
	analyticsCmd.AddCommand(analyticsTrendsCmd)
	analyticsCmd.AddCommand(analyticsUserCmd)
	rootCmd.AddCommand(analyticsCmd)
}

type analyticsReport struct {
	*domain.SearchAnalytics
	ClickThrough *domain.ClickThroughStats `json:"clickThrough"`
}

func runAnalytics(cmd *cobra.Command, _ []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	r := domain.LastDays(time.Now(), analyticsDays)

	stats, err := a.Analytics.GetAnalytics(ctx, r)
	if err != nil {
		return err
	}
	ctr, err := a.Analytics.ClickThroughRate(ctx, r)
	if err != nil {
		return err
	}

	if analyticsJSON {
		return outputJSON(cmd, analyticsReport{SearchAnalytics: stats, ClickThrough: ctr})
	}

	cmd.Printf("Searches over the last %d days\n", analyticsDays)
	cmd.Printf("  Total:          %d\n", stats.TotalSearches)
	cmd.Printf("  Unique queries: %d\n", stats.UniqueQueries)
	cmd.Printf("  Avg latency:    %s\n", stats.AvgExecutionTime.Round(time.Microsecond))
	cmd.Printf("  Avg results:    %.2f\n", stats.AvgResultsCount)
	cmd.Printf("  Zero results:   %d (%.2f%%)\n", stats.ZeroResultSearches, stats.ZeroResultRate)
	cmd.Printf("  Click-through:  %d of %d (%.2f%%)\n", ctr.SearchesWithClicks, ctr.TotalSearches, ctr.Rate)

	if len(stats.TopSearches) > 0 {
		cmd.Println()
		cmd.Println("Top searches:")
		for i, ts := range stats.TopSearches {
			cmd.Printf("  %2d. %s (%d, %.2f avg results)\n", i+1, ts.Query, ts.Count, ts.AvgResults)
		}
	}
	if len(stats.SearchesByType) > 0 {
		cmd.Println()
		cmd.Println("By type:")
		for _, tc := range stats.SearchesByType {
			cmd.Printf("  %-20s %d\n", tc.Type, tc.Count)
		}
	}
	return nil
}

func runAnalyticsTrends(cmd *cobra.Command, _ []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	points, err := a.Analytics.SearchTrends(cmd.Context(), analyticsDays)
	if err != nil {
		return err
	}
	if analyticsJSON {
		if points == nil {
			points = []domain.TrendPoint{}
		}
		return outputJSON(cmd, points)
	}

	if len(points) == 0 {
		cmd.Println("No searches recorded.")
		return nil
	}
	for _, p := range points {
		cmd.Printf("  %s  %5d searches  %.2f avg results  %s\n",
			p.Date, p.Count, p.AvgResults, p.AvgExecutionTime.Round(time.Microsecond))
	}
	return nil
}

func runAnalyticsUser(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	b, err := a.Analytics.UserBehavior(cmd.Context(), args[0], analyticsDays)
	if err != nil {
		return err
	}
	if analyticsJSON {
		return outputJSON(cmd, b)
	}

	cmd.Printf("User %s over the last %d days\n", b.UserID, analyticsDays)
	cmd.Printf("  Searches:            %d\n", b.TotalSearches)
	cmd.Printf("  Unique queries:      %d\n", b.UniqueQueries)
	cmd.Printf("  Avg results clicked: %.1f\n", b.AvgResultsClicked)
	for i, q := range b.TopQueries {
		cmd.Printf("  %2d. %s (%d)\n", i+1, q.Query, q.Count)
	}
	return nil
}
