package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

var clickPosition int

var clickCmd = &cobra.Command{
	Use:   "click [query-id] [type] [result-id]",
	Short: "Record a click on a search result",
	Long: `Attaches a result click to a logged search. The query id is printed
by search when --user is given.`,
	Args: cobra.ExactArgs(3),
	RunE: runClick,
}

func init() {
	clickCmd.Flags().IntVarP(&clickPosition, "position", "p", 1, "1-based position of the result")
	rootCmd.AddCommand(clickCmd)
}

func runClick(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	entity, err := domain.ParseEntityType(args[1])
	if err != nil {
		return err
	}
	if clickPosition < 1 {
		return fmt.Errorf("%w: --position must be at least 1", domain.ErrInvalidInput)
	}

	err = a.Analytics.TrackClick(cmd.Context(), args[0], domain.ClickedResult{
		ResultID:   args[2],
		ResultType: entity,
		Position:   clickPosition,
		ClickedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("track click: %w", err)
	}

	cmd.Printf("Click on %s:%s recorded.\n", entity, args[2])
	return nil
}
