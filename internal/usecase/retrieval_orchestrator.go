package usecase

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

// RetrievalConfig holds configuration for the retrieval orchestrator
type RetrievalConfig struct {
	MaxSimilarIngredients int
	MaxSimilarProducts    int
	MinSimilarity         float64
	Timeout               time.Duration
}

// RetrievalOrchestrator builds similarity queries from a product's embedding
// and gathers similar ingredients, similar products and guideline snippets.
// Failure here is never fatal: the analysis proceeds with reduced context.
type RetrievalOrchestrator struct {
	index                 domain.VectorIndex
	store                 domain.ProductStore
	log                   *logger.Logger
	maxSimilarIngredients int
	maxSimilarProducts    int
	minSimilarity         float64
	timeout               time.Duration
}

// NewRetrievalOrchestrator creates a retrieval orchestrator with defaults
// applied for any zero config value.
func NewRetrievalOrchestrator(index domain.VectorIndex, store domain.ProductStore, log *logger.Logger, config RetrievalConfig) *RetrievalOrchestrator {
	if config.MaxSimilarIngredients <= 0 {
		config.MaxSimilarIngredients = 5
	}
	if config.MaxSimilarProducts <= 0 {
		config.MaxSimilarProducts = 3
	}
	if config.MinSimilarity <= 0 {
		config.MinSimilarity = 0.65
	}
	if config.Timeout <= 0 {
		config.Timeout = 300 * time.Millisecond
	}
	return &RetrievalOrchestrator{
		index:                 index,
		store:                 store,
		log:                   log,
		maxSimilarIngredients: config.MaxSimilarIngredients,
		maxSimilarProducts:    config.MaxSimilarProducts,
		minSimilarity:         config.MinSimilarity,
		timeout:               config.Timeout,
	}
}

// Retrieve runs the vector and guideline queries concurrently under the
// retrieval budget. Products sharing an allergen the profile flags are
// excluded; the caller wants safe context, not a list of the same hazard.
// Results below the similarity threshold are dropped, never padded.
func (r *RetrievalOrchestrator) Retrieve(ctx context.Context, product *domain.Product, profile *domain.RestrictionProfile) *domain.RetrievalResult {
	result := &domain.RetrievalResult{}

	if len(product.Embedding) == 0 {
		r.log.Warn("product has no embedding, skipping vector retrieval", "code", product.Code)
		result.Reduced = true
		return r.withGuidelines(ctx, profile, result)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	excludeAllergens := make([]string, 0, len(profile.Allergies))
	for _, a := range profile.Allergies {
		excludeAllergens = append(excludeAllergens, a.AllergenID)
	}

	g, gctx := errgroup.WithContext(ctx)

	var ingredients []domain.SimilarIngredient
	var products []domain.SimilarProduct

	g.Go(func() error {
		found, err := r.index.QueryNearestIngredients(gctx, product.Embedding, r.maxSimilarIngredients*2)
		if err != nil {
			return err
		}
		ingredients = found
		return nil
	})

	g.Go(func() error {
		found, err := r.index.QueryNearestProducts(gctx, product.Embedding, r.maxSimilarProducts*2, excludeAllergens)
		if err != nil {
			return err
		}
		products = found
		return nil
	})

	if err := g.Wait(); err != nil {
		r.log.Warn("vector retrieval failed, proceeding with reduced context",
			"code", product.Code, "error", err)
		result.Reduced = true
	}

	result.SimilarIngredients = capIngredients(ingredients, r.minSimilarity, r.maxSimilarIngredients)
	result.SimilarProducts = capProducts(products, r.minSimilarity, r.maxSimilarProducts)

	return r.withGuidelines(ctx, profile, result)
}

// withGuidelines fetches guideline snippets for the profile's religious and
// lifestyle categories. A failed fetch reduces context but never aborts.
func (r *RetrievalOrchestrator) withGuidelines(ctx context.Context, profile *domain.RestrictionProfile, result *domain.RetrievalResult) *domain.RetrievalResult {
	categories := make([]string, 0, len(profile.Religious)+len(profile.Lifestyle))
	for _, rel := range profile.Religious {
		categories = append(categories, rel.Tradition)
	}
	for _, l := range profile.Lifestyle {
		categories = append(categories, l.Pattern)
	}
	if len(categories) == 0 {
		return result
	}

	snippets, err := r.store.GetGuidelines(ctx, categories)
	if err != nil {
		r.log.Warn("guideline retrieval failed, proceeding with reduced context", "error", err)
		result.Reduced = true
		return result
	}
	result.Guidelines = snippets
	return result
}

// capIngredients drops sub-threshold results and keeps the top k by score.
func capIngredients(items []domain.SimilarIngredient, minScore float64, k int) []domain.SimilarIngredient {
	kept := items[:0:0]
	for _, item := range items {
		if item.Score >= minScore {
			kept = append(kept, item)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > k {
		kept = kept[:k]
	}
	return kept
}

// capProducts drops sub-threshold results and keeps the top k by score.
func capProducts(items []domain.SimilarProduct, minScore float64, k int) []domain.SimilarProduct {
	kept := items[:0:0]
	for _, item := range items {
		if item.Score >= minScore {
			kept = append(kept, item)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
