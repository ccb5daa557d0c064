// Package mcp provides an MCP (Model Context Protocol) server adapter for searchsync.
// It lets AI assistants search posts, users and comments, fetch suggestions,
// trigger syncs and read query analytics.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
