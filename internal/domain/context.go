package domain

// SimilarIngredient is a semantically similar ingredient returned by the
// vector index, with a short gloss for the reasoning prompt.
type SimilarIngredient struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"` // cosine similarity in [0,1]
	Gloss string  `json:"gloss,omitempty"`
}

// SimilarProduct is a semantically similar product returned by the vector
// index. Allergen tags travel with it so alternatives can be filtered.
type SimilarProduct struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Score        float64  `json:"score"`
	AllergenTags []string `json:"allergenTags,omitempty"`
}

// GuidelineSnippet is a short dietary-guideline or certification-rule
// excerpt retrieved from the document store.
type GuidelineSnippet struct {
	Category string `json:"category"` // e.g. "halal", "vegan"
	Text     string `json:"text"`
}

// RetrievalResult is the Retrieval Orchestrator's output. Reduced is set
// when the vector or document query failed and the lists are incomplete;
// the Confidence Scorer lowers confidence accordingly.
type RetrievalResult struct {
	SimilarIngredients []SimilarIngredient
	SimilarProducts    []SimilarProduct
	Guidelines         []GuidelineSnippet
	Reduced            bool
}

// RAGContext is the bounded context handed to the Compliance Reasoner.
// Built fresh per analysis and never mutated afterwards.
type RAGContext struct {
	Product            *Product
	Profile            *RestrictionProfile
	RuleSummary        string // compact summary of rule-sourced findings
	SimilarIngredients []SimilarIngredient
	SimilarProducts    []SimilarProduct
	Guidelines         []GuidelineSnippet
	Reduced            bool
}
