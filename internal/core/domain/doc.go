// Package domain defines the core types of the search synchronisation subsystem.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - EntityType: The closed set of searchable entity kinds
//   - IndexDefinition: Per-entity field schema used by mapper, builder and gateways
//   - Record: A primary-store record as seen by the sync engine
//   - IndexedDocument: The flat, denormalised projection stored in the index
//   - StructuredQuery: A backend-neutral search request
//   - SearchQueryRecord: A persisted query log entry
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
