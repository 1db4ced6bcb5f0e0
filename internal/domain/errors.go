package domain

import "errors"

var (
	// ErrProductNotFound is returned when a product cannot be found in the product store
	ErrProductNotFound = errors.New("product not found")

	// ErrProfileRequired is returned when an analysis is requested without a restriction profile
	ErrProfileRequired = errors.New("restriction profile is required")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrDataIncomplete marks a product missing ingredients or nutrition data.
	// It triggers the confidence floor rather than failing the analysis.
	ErrDataIncomplete = errors.New("product data incomplete")

	// ErrReasoningUnavailable is returned when the reasoning service is down,
	// timed out, or returned no usable response
	ErrReasoningUnavailable = errors.New("reasoning service unavailable")

	// ErrReasoningParse is returned when the reasoning service response does
	// not match the required shape
	ErrReasoningParse = errors.New("reasoning response malformed")

	// ErrRetrievalUnavailable is returned when the vector or document query failed
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrCacheMiss is returned when a judgment is not found in any cache tier
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheTierUnavailable is returned when a single cache tier's store failed
	ErrCacheTierUnavailable = errors.New("cache tier unavailable")
)
