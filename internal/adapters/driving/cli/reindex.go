package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

var reindexDelete bool

var reindexCmd = &cobra.Command{
	Use:   "reindex [type] [id]",
	Short: "Re-index or remove a single record",
	Long: `Re-reads one record from the primary store and writes it to the index.
A record that no longer exists is removed from the index. Use --delete
to remove it unconditionally.`,
	Args: cobra.ExactArgs(2),
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexDelete, "delete", false, "remove the record from the index")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	entity, err := domain.ParseEntityType(args[0])
	if err != nil {
		return err
	}
	id := args[1]
	ctx := cmd.Context()

	if err := a.Engine.EnsureIndices(ctx); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	if reindexDelete {
		if err := a.Engine.DeleteOne(ctx, entity, id); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		cmd.Printf("Removed %s:%s from the index.\n", entity, id)
		return nil
	}

	if err := a.Engine.SyncOne(ctx, entity, id); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	cmd.Printf("Re-indexed %s:%s.\n", entity, id)
	return nil
}
