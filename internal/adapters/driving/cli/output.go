package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/core/domain"
)

const summaryWidth = 80

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// summaryFields are tried in order when describing a result.
var summaryFields = map[domain.EntityType][]string{
	domain.EntityPost:    {"caption", "content"},
	domain.EntityUser:    {"username", "bio"},
	domain.EntityComment: {"content"},
}

// resultSummary returns a one-line description of a search result.
func resultSummary(r domain.SearchResult) string {
	for _, field := range summaryFields[r.Type] {
		if s, ok := r.Data[field].(string); ok && s != "" {
			return truncate(s, summaryWidth)
		}
	}
	return r.ID
}

// firstHighlight returns a fragment from the alphabetically first highlighted field.
func firstHighlight(h map[string][]string) string {
	fields := make([]string, 0, len(h))
	for f := range h {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if len(h[f]) > 0 {
			return h[f][0]
		}
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
