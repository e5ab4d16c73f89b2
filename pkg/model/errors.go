package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrRetrievalUnavailable means the embedding service or vector backend
	// could not be reached. Distinct from an empty search result.
	ErrRetrievalUnavailable = goerr.New("retrieval unavailable")

	// ErrRetrievalTimeout means the per-query deadline was exceeded.
	// Session history is left untouched so retrying is safe.
	ErrRetrievalTimeout = goerr.New("retrieval timed out")

	// ErrEmptyDocument marks a document that produced no usable text.
	// Ingestion logs it and continues with the remaining documents.
	ErrEmptyDocument = goerr.New("document has no content")
)
