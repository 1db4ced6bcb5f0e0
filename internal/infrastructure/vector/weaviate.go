package vector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

// Weaviate class names. Objects are written by the import pipeline; the
// engine only reads them.
const (
	ingredientClass = "DietaryIngredient"
	productClass    = "DietaryProduct"
	guidelineClass  = "DietaryGuideline"
)

const maxGuidelines = 4

// Store reads products, guidelines and nearest-neighbor matches from
// Weaviate. It backs both the product store and the vector index.
type Store struct {
	client *weaviate.Client
	log    *logger.Logger
}

// NewStore connects to the Weaviate instance at host. apiKey may be empty
// for unauthenticated local instances.
func NewStore(host, scheme, apiKey string, log *logger.Logger) (*Store, error) {
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &Store{client: client, log: log}, nil
}

// GetProduct looks up one product by barcode. The full document is stored as
// a JSON property so nested fields like certifications and nutrition survive
// the flat property model; the embedding rides along as the object vector.
func (s *Store) GetProduct(ctx context.Context, code string) (*domain.Product, error) {
	where := filters.Where().
		WithPath([]string{"code"}).
		WithOperator(filters.Equal).
		WithValueString(code)

	fields := []graphql.Field{
		{Name: "code"},
		{Name: "document"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "vector"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(productClass).
		WithFields(fields...).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate product lookup: %w", err)
	}

	objects := parseObjects(result, productClass)
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, code)
	}

	obj := objects[0]
	var product domain.Product
	if err := json.Unmarshal([]byte(getString(obj, "document")), &product); err != nil {
		return nil, fmt.Errorf("decode product document %s: %w", code, err)
	}
	product.Embedding = getVector(obj)

	return &product, nil
}

// GetGuidelines fetches guideline snippets for the given restriction
// categories, e.g. religious traditions and lifestyle patterns.
func (s *Store) GetGuidelines(ctx context.Context, categories []string) ([]domain.GuidelineSnippet, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	operands := make([]*filters.WhereBuilder, 0, len(categories))
	for _, category := range categories {
		operands = append(operands, filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.Equal).
			WithValueString(category))
	}
	where := filters.Where().
		WithOperator(filters.Or).
		WithOperands(operands)

	fields := []graphql.Field{
		{Name: "category"},
		{Name: "text"},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(guidelineClass).
		WithFields(fields...).
		WithWhere(where).
		WithLimit(maxGuidelines).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate guideline lookup: %w", err)
	}

	var snippets []domain.GuidelineSnippet
	for _, obj := range parseObjects(result, guidelineClass) {
		snippets = append(snippets, domain.GuidelineSnippet{
			Category: getString(obj, "category"),
			Text:     getString(obj, "text"),
		})
	}
	return snippets, nil
}

// QueryNearestIngredients returns the k ingredients closest to the query
// vector, scored by certainty so the caller can threshold on [0,1].
func (s *Store) QueryNearestIngredients(ctx context.Context, vector []float32, k int) ([]domain.SimilarIngredient, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "name"},
		{Name: "gloss"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(ingredientClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: ingredient search: %v", domain.ErrRetrievalUnavailable, err)
	}

	var ingredients []domain.SimilarIngredient
	for _, obj := range parseObjects(result, ingredientClass) {
		ingredients = append(ingredients, domain.SimilarIngredient{
			Name:  getString(obj, "name"),
			Gloss: getString(obj, "gloss"),
			Score: getCertainty(obj),
		})
	}
	return ingredients, nil
}

// QueryNearestProducts returns the k products closest to the query vector.
// Weaviate's where filters cannot express set exclusion over an array
// property, so allergen exclusion happens client-side after over-fetching.
func (s *Store) QueryNearestProducts(ctx context.Context, vector []float32, k int, excludeAllergens []string) ([]domain.SimilarProduct, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "code"},
		{Name: "name"},
		{Name: "allergenTags"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	fetch := k
	if len(excludeAllergens) > 0 {
		fetch = k * 3
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(productClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(fetch).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: product search: %v", domain.ErrRetrievalUnavailable, err)
	}

	excluded := make(map[string]bool, len(excludeAllergens))
	for _, allergen := range excludeAllergens {
		excluded[allergen] = true
	}

	var products []domain.SimilarProduct
	for _, obj := range parseObjects(result, productClass) {
		tags := getStringSlice(obj, "allergenTags")
		if containsAny(tags, excluded) {
			continue
		}
		products = append(products, domain.SimilarProduct{
			Code:         getString(obj, "code"),
			Name:         getString(obj, "name"),
			AllergenTags: tags,
			Score:        getCertainty(obj),
		})
		if len(products) == k {
			break
		}
	}
	return products, nil
}

func containsAny(tags []string, excluded map[string]bool) bool {
	for _, tag := range tags {
		if excluded[tag] {
			return true
		}
	}
	return false
}

// parseObjects extracts the object maps for one class from a GraphQL
// response, skipping anything malformed.
func parseObjects(result *models.GraphQLResponse, className string) []map[string]interface{} {
	if result == nil {
		return nil
	}
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := data[className].([]interface{})
	if !ok {
		return nil
	}

	objects := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]interface{}); ok {
			objects = append(objects, obj)
		}
	}
	return objects
}

func getString(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func getStringSlice(obj map[string]interface{}, key string) []string {
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getCertainty(obj map[string]interface{}) float64 {
	additional, ok := obj["_additional"].(map[string]interface{})
	if !ok {
		return 0
	}
	if v, ok := additional["certainty"].(float64); ok {
		return v
	}
	return 0
}

func getVector(obj map[string]interface{}) []float32 {
	additional, ok := obj["_additional"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := additional["vector"].([]interface{})
	if !ok {
		return nil
	}
	vector := make([]float32, 0, len(raw))
	for _, item := range raw {
		if f, ok := item.(float64); ok {
			vector = append(vector, float32(f))
		}
	}
	return vector
}
