package domain

import "errors"

var (
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidDocument signals a document that failed validation.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidFilter signals an unsupported filter value.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrBatchTooLarge signals a bulk request over the configured limit.
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrPrivacyViolation signals an item served from a source not
	// authorized for its relevance tier.
	ErrPrivacyViolation = errors.New("privacy rule violation")
)
