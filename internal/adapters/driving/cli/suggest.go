package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

var (
	suggestLimit int
	suggestTypes string
	suggestUser  string
	suggestJSON  bool

	trendingLimit int
	trendingDays  int
	trendingJSON  bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [prefix]",
	Short: "Autocomplete a search prefix",
	Long: `Merges suggestions from the user's recent searches, popular queries
and indexed content. Prefixes shorter than two characters return nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show the most frequent recent queries",
	Args:  cobra.NoArgs,
	RunE:  runTrending,
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", domain.DefaultSuggestLimit, "maximum number of suggestions")
	suggestCmd.Flags().StringVarP(&suggestTypes, "type", "t", "all", "entity types for content suggestions")
	suggestCmd.Flags().StringVar(&suggestUser, "user", "", "user whose history is consulted")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "output suggestions as JSON")
	rootCmd.AddCommand(suggestCmd)

	trendingCmd.Flags().IntVarP(&trendingLimit, "limit", "n", 10, "maximum number of queries")
	trendingCmd.Flags().IntVar(&trendingDays, "days", 7, "look-back window in days")
	trendingCmd.Flags().BoolVar(&trendingJSON, "json", false, "output queries as JSON")
	rootCmd.AddCommand(trendingCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	entities, err := domain.ParseEntityFilter(suggestTypes)
	if err != nil {
		return err
	}

	resp := a.Suggest.Suggest(cmd.Context(), domain.SuggestRequest{
		Prefix:   args[0],
		Entities: entities,
		Limit:    suggestLimit,
		UserID:   suggestUser,
	})

	if suggestJSON {
		return outputJSON(cmd, resp)
	}

	if len(resp.Suggestions) == 0 {
		cmd.Println("No suggestions.")
		return nil
	}
	for _, cat := range resp.Categories {
		cmd.Printf("%s:\n", cat.Name)
		for _, s := range cat.Suggestions {
			switch {
			case s.Count > 0:
				cmd.Printf("  %s (%d)\n", s.Text, s.Count)
			case s.ID != "":
				cmd.Printf("  %s [%s:%s]\n", s.Text, s.Entity, s.ID)
			default:
				cmd.Printf("  %s\n", s.Text)
			}
		}
	}
	return nil
}

func runTrending(cmd *cobra.Command, _ []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	queries := a.Suggest.Trending(cmd.Context(), trendingLimit, trendingDays)
	if trendingJSON {
		if queries == nil {
			queries = []domain.PopularQuery{}
		}
		return outputJSON(cmd, queries)
	}

	if len(queries) == 0 {
		cmd.Println("No searches recorded.")
		return nil
	}
	cmd.Printf("Trending over the last %d days:\n", trendingDays)
	for i, q := range queries {
		cmd.Printf("  %2d. %s (%d searches, %.1f avg results)\n", i+1, q.Query, q.Count, q.AvgResults)
	}
	return nil
}
