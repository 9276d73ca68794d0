// Package model holds the value types shared by the client, cache, indexer
// and search engine: repositories, documentation types and indices, and
// search results.
package model
