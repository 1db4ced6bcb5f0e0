package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

type fakeVectorIndex struct {
	ingredients []domain.SimilarIngredient
	products    []domain.SimilarProduct
	err         error
	delay       time.Duration

	gotExcludeAllergens []string
}

func (f *fakeVectorIndex) QueryNearestIngredients(ctx context.Context, vector []float32, k int) ([]domain.SimilarIngredient, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.ingredients, f.err
}

func (f *fakeVectorIndex) QueryNearestProducts(ctx context.Context, vector []float32, k int, excludeAllergens []string) ([]domain.SimilarProduct, error) {
	f.gotExcludeAllergens = excludeAllergens
	return f.products, f.err
}

type fakeProductStore struct {
	product    *domain.Product
	guidelines []domain.GuidelineSnippet
	err        error
}

func (f *fakeProductStore) GetProduct(ctx context.Context, code string) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.product == nil {
		return nil, domain.ErrProductNotFound
	}
	return f.product, nil
}

func (f *fakeProductStore) GetGuidelines(ctx context.Context, categories []string) ([]domain.GuidelineSnippet, error) {
	return f.guidelines, f.err
}

func embeddedProduct() *domain.Product {
	return &domain.Product{
		Code:        "111",
		Name:        "Granola Bar",
		Ingredients: []string{"oats, honey"},
		Embedding:   []float32{0.1, 0.2, 0.3},
	}
}

func TestRetrieve_CapsAndThreshold(t *testing.T) {
	index := &fakeVectorIndex{
		ingredients: []domain.SimilarIngredient{
			{Name: "rolled oats", Score: 0.95},
			{Name: "oat bran", Score: 0.88},
			{Name: "barley", Score: 0.82},
			{Name: "rye", Score: 0.78},
			{Name: "wheat", Score: 0.72},
			{Name: "quinoa", Score: 0.70},
			{Name: "rice", Score: 0.40}, // below threshold
		},
		products: []domain.SimilarProduct{
			{Code: "a", Name: "Oat Bar", Score: 0.9},
			{Code: "b", Name: "Muesli", Score: 0.8},
			{Code: "c", Name: "Trail Mix", Score: 0.75},
			{Code: "d", Name: "Cereal", Score: 0.71},
			{Code: "e", Name: "Crackers", Score: 0.30}, // below threshold
		},
	}
	orch := NewRetrievalOrchestrator(index, &fakeProductStore{}, logger.NewNop(), RetrievalConfig{
		MaxSimilarIngredients: 5,
		MaxSimilarProducts:    3,
		MinSimilarity:         0.65,
	})

	result := orch.Retrieve(context.Background(), embeddedProduct(), &domain.RestrictionProfile{})

	if len(result.SimilarIngredients) != 5 {
		t.Errorf("similar ingredients = %d, want 5 (capped)", len(result.SimilarIngredients))
	}
	if len(result.SimilarProducts) != 3 {
		t.Errorf("similar products = %d, want 3 (capped)", len(result.SimilarProducts))
	}
	for _, si := range result.SimilarIngredients {
		if si.Score < 0.65 {
			t.Errorf("ingredient %q below threshold kept (score %.2f)", si.Name, si.Score)
		}
	}
	if result.Reduced {
		t.Errorf("Reduced = true, want false on success")
	}
}

func TestRetrieve_FailureIsNonFatal(t *testing.T) {
	index := &fakeVectorIndex{err: errors.New("connection refused")}
	orch := NewRetrievalOrchestrator(index, &fakeProductStore{}, logger.NewNop(), RetrievalConfig{})

	result := orch.Retrieve(context.Background(), embeddedProduct(), &domain.RestrictionProfile{})

	if !result.Reduced {
		t.Errorf("Reduced = false, want true after index failure")
	}
	if len(result.SimilarIngredients) != 0 || len(result.SimilarProducts) != 0 {
		t.Errorf("expected empty result lists after failure")
	}
}

func TestRetrieve_TimeoutIsNonFatal(t *testing.T) {
	index := &fakeVectorIndex{delay: 200 * time.Millisecond}
	orch := NewRetrievalOrchestrator(index, &fakeProductStore{}, logger.NewNop(), RetrievalConfig{
		Timeout: 20 * time.Millisecond,
	})

	result := orch.Retrieve(context.Background(), embeddedProduct(), &domain.RestrictionProfile{})

	if !result.Reduced {
		t.Errorf("Reduced = false, want true after timeout")
	}
}

func TestRetrieve_MissingEmbeddingSkipsVectorQueries(t *testing.T) {
	index := &fakeVectorIndex{}
	orch := NewRetrievalOrchestrator(index, &fakeProductStore{}, logger.NewNop(), RetrievalConfig{})

	product := &domain.Product{Code: "222", Ingredients: []string{"salt"}}
	result := orch.Retrieve(context.Background(), product, &domain.RestrictionProfile{})

	if !result.Reduced {
		t.Errorf("Reduced = false, want true without an embedding")
	}
}

func TestRetrieve_PassesAllergenExclusions(t *testing.T) {
	index := &fakeVectorIndex{}
	orch := NewRetrievalOrchestrator(index, &fakeProductStore{}, logger.NewNop(), RetrievalConfig{})

	profile := &domain.RestrictionProfile{
		Allergies: []domain.AllergyRestriction{
			{AllergenID: "milk", Severity: domain.SeveritySevere},
			{AllergenID: "peanut", Severity: domain.SeverityModerate},
		},
	}
	orch.Retrieve(context.Background(), embeddedProduct(), profile)

	if len(index.gotExcludeAllergens) != 2 {
		t.Fatalf("exclude allergens = %v, want [milk peanut]", index.gotExcludeAllergens)
	}
}

func TestRetrieve_FetchesGuidelinesForCategories(t *testing.T) {
	store := &fakeProductStore{
		guidelines: []domain.GuidelineSnippet{{Category: "halal", Text: "gelatin must come from halal-slaughtered animals"}},
	}
	orch := NewRetrievalOrchestrator(&fakeVectorIndex{}, store, logger.NewNop(), RetrievalConfig{})

	profile := &domain.RestrictionProfile{
		Religious: []domain.ReligiousRestriction{{Tradition: "halal", Strictness: domain.StrictnessStrict}},
	}
	result := orch.Retrieve(context.Background(), embeddedProduct(), profile)

	if len(result.Guidelines) != 1 {
		t.Fatalf("guidelines = %d, want 1", len(result.Guidelines))
	}
}
