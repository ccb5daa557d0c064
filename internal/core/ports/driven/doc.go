// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - IndexGateway: The search index (bleve embedded or Elasticsearch)
//   - RecordSource: Read-only view of the primary transactional store
//   - SyncStateStore: Watermark persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - QueryLogStore: Query log persistence. Without it, searches are not logged,
//     autocomplete has no history or popular sources and analytics are unavailable.
//   - SchedulerStore: Pass history. Without it, only the last pass is reported.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
