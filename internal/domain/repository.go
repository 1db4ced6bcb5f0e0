package domain

import (
	"context"
	"time"
)

// ProductStore reads products and guideline snippets from the document store.
// Population and import of the store happen outside the engine.
type ProductStore interface {
	GetProduct(ctx context.Context, code string) (*Product, error)
	GetGuidelines(ctx context.Context, categories []string) ([]GuidelineSnippet, error)
}

// VectorIndex runs nearest-neighbor queries over the ingredient and product
// embedding spaces. excludeAllergens filters out results tagged with any of
// the given allergen ids.
type VectorIndex interface {
	QueryNearestIngredients(ctx context.Context, vector []float32, k int) ([]SimilarIngredient, error)
	QueryNearestProducts(ctx context.Context, vector []float32, k int, excludeAllergens []string) ([]SimilarProduct, error)
}

// ReasoningClient sends one prompt to the hosted reasoning service and
// returns its raw text response.
type ReasoningClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CacheStore is one cache tier's key-value contract. Implementations must be
// safe for concurrent use. Get returns ErrCacheMiss when the key is absent
// or expired, and ErrCacheTierUnavailable (wrapped) when the tier's backing
// store failed.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
