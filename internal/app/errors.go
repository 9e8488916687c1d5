package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrNoDocuments is returned when a session that has uploaded before
	// asks a question after every document was deleted.
	ErrNoDocuments = errors.New("please upload a PDF first")

	ErrExtraction = errors.New("text extraction failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrGeneration = errors.New("answer generation failed")
	ErrStorage    = errors.New("storage failure")

	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStreamConsumed    = errors.New("answer stream already consumed")
)
