// Package bleveindex implements the index gateway on embedded bleve indices.
//
// Each entity type gets its own index, in memory when no data directory is
// configured and on disk otherwise. Multi-entity searches run over an index
// alias so scores, sorting and facets merge across types.
package bleveindex
