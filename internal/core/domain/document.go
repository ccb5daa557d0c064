package domain

// IndexedDocument is the flat, denormalised projection of a Record.
// ID equals the primary record id so re-indexing overwrites.
type IndexedDocument struct {
	// Entity selects the target index.
	Entity EntityType

	// ID is the document id within the index.
	ID string

	// Fields holds one value per field of the entity's IndexDefinition.
	Fields map[string]any
}

// BulkItemError is a per-document failure inside a bulk request.
type BulkItemError struct {
	ID  string
	Err error
}

// BulkResult reports the outcome of a bulk index request.
type BulkResult struct {
	// Indexed is the number of documents accepted.
	Indexed int

	// Failed lists the documents the index rejected.
	Failed []BulkItemError
}

// IndexHealth describes the search backend's state.
type IndexHealth struct {
	// Backend names the gateway implementation.
	Backend string

	// Status is green, yellow or red.
	Status string

	// Documents is the document count per index name.
	Documents map[string]int
}
