package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

const dateLayout = "2006-01-02"

var (
	searchLimit    int
	searchOffset   int
	searchTypes    string
	searchSort     string
	searchTags     []string
	searchAuthor   string
	searchCategory string
	searchFrom     string
	searchTo       string
	searchUser     string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search posts, users and comments",
	Long: `Runs a ranked full-text search across the indexed entity types.

The query accepts "quoted phrases", field:value filters (type:, tag:,
author:, category:) and NOT terms. An empty query browses newest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of results to skip")
	searchCmd.Flags().StringVarP(&searchTypes, "type", "t", "all", "entity types: posts, users, comments or all")
	searchCmd.Flags().StringVarP(&searchSort, "sort", "s", string(domain.SortRelevance), "relevance, newest, oldest or popular")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "match posts with any of these tags")
	searchCmd.Flags().StringVar(&searchAuthor, "author", "", "exact author username")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "exact post category")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "created on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "created on or before this date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchUser, "user", "", "searching user id, enables query logging")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	entities, err := domain.ParseEntityFilter(searchTypes)
	if err != nil {
		return err
	}
	dates, err := parseDateRange(searchFrom, searchTo)
	if err != nil {
		return err
	}

	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	resp, err := a.Search.Search(cmd.Context(), domain.SearchRequest{
		Query:    query,
		Entities: entities,
		Filters: domain.SearchFilters{
			Tags:      searchTags,
			Author:    searchAuthor,
			Category:  searchCategory,
			DateRange: dates,
		},
		Sort:   domain.ParseSortMode(searchSort),
		Offset: searchOffset,
		Limit:  searchLimit,
		UserID: searchUser,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, resp)
	}
	return outputSearchTable(cmd, resp)
}

// parseDateRange parses inclusive YYYY-MM-DD bounds in UTC.
func parseDateRange(from, to string) (domain.DateRange, error) {
	var r domain.DateRange
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return r, fmt.Errorf("%w: --from: %w", domain.ErrInvalidInput, err)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return r, fmt.Errorf("%w: --to: %w", domain.ErrInvalidInput, err)
		}
		r.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, fmt.Errorf("%w: --to is before --from", domain.ErrInvalidInput)
	}
	return r, nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results (%d of %d, %s):\n", len(resp.Results), resp.Total, resp.ExecutionTime.Round(time.Microsecond))
	cmd.Println()
	for i, r := range resp.Results {
		// Format: [N] type:id Summary (Score)
		cmd.Printf("  [%d] %s:%s %s (%.2f)\n", i+1, r.Type, r.ID, resultSummary(r), r.Score)
		if h := firstHighlight(r.Highlights); h != "" {
			cmd.Printf("      %s\n", h)
		}
	}

	if resp.QueryID != "" {
		cmd.Println()
		cmd.Printf("Query ID: %s\n", resp.QueryID)
	}
	return nil
}
