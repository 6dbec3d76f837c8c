package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCoordinate signals a latitude/longitude outside the WGS-84 range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidQuery signals a discovery query with zero or several modes.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidArgument signals an out-of-range request parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLocationUnavailable signals that no client location could be resolved.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrEmbeddingFailed signals that query text could not be vectorized.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrDimensionMismatch signals a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
