package mcp

import (
	"github.com/custodia-labs/searchsync/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces used by the MCP server.
// Tools and resources backed by a nil port are not registered.
type Ports struct {
	// Search provides search capabilities. Required.
	Search driving.SearchService

	// Suggest provides autocomplete.
	Suggest driving.Autocompleter

	// Scheduler runs and reports sync passes.
	Scheduler driving.SyncScheduler

	// Analytics reports on the query log.
	Analytics driving.AnalyticsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
