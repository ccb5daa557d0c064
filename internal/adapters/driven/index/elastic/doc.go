// Package elastic implements the index gateway against an Elasticsearch
// cluster using the official go-elasticsearch client.
package elastic
