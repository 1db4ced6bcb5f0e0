package domain

import "time"

// Product represents a consumer product as stored by the product store.
// The engine only reads products; imports and updates happen upstream.
type Product struct {
	Code             string          `json:"code"` // scannable barcode (UPC/EAN)
	Name             string          `json:"name"`
	Brand            string          `json:"brand,omitempty"`
	Ingredients      []string        `json:"ingredients"`                // raw text, label order
	IngredientTokens []string        `json:"ingredientTokens,omitempty"` // normalized, deduplicated
	AllergenTags     []string        `json:"allergenTags,omitempty"`     // explicit "contains" warnings
	MayContainTags   []string        `json:"mayContainTags,omitempty"`   // "may contain"/shared-facility warnings
	Certifications   []Certification `json:"certifications,omitempty"`
	Nutrition        *NutritionFacts `json:"nutrition,omitempty"` // nil when no nutrition data is known
	Embedding        []float32       `json:"embedding,omitempty"` // 384-dim ingredient-text embedding
	DataQuality      float64         `json:"dataQuality"`         // 0-1 import confidence
	LastUpdated      time.Time       `json:"lastUpdated"`
}

// Certification is a third-party dietary certification attached to a product.
type Certification struct {
	Type     string `json:"type"` // e.g. "halal", "kosher", "vegan"
	Body     string `json:"body,omitempty"`
	Verified bool   `json:"verified"`
}

// NutritionFacts holds per-serving nutrient amounts used by medical matching.
type NutritionFacts struct {
	Calories      float64 `json:"calories"`
	SodiumMg      float64 `json:"sodiumMg"`
	SugarG        float64 `json:"sugarG"`
	CarbohydrateG float64 `json:"carbohydrateG"`
	ProteinG      float64 `json:"proteinG"`
	TotalFatG     float64 `json:"totalFatG"`
}

// Nutrient identifies a NutritionFacts field for medical threshold checks.
type Nutrient string

const (
	NutrientCalories     Nutrient = "calories"
	NutrientSodium       Nutrient = "sodium"
	NutrientSugar        Nutrient = "sugar"
	NutrientCarbohydrate Nutrient = "carbohydrate"
)

// Amount returns the per-serving value for the given nutrient, or false when
// the nutrient is unknown or no nutrition data is present.
func (n *NutritionFacts) Amount(nutrient Nutrient) (float64, bool) {
	if n == nil {
		return 0, false
	}
	switch nutrient {
	case NutrientCalories:
		return n.Calories, true
	case NutrientSodium:
		return n.SodiumMg, true
	case NutrientSugar:
		return n.SugarG, true
	case NutrientCarbohydrate:
		return n.CarbohydrateG, true
	}
	return 0, false
}

// HasVerifiedCertification reports whether the product carries a verified
// certification of the given type. Certification types are stored lowercase.
func (p *Product) HasVerifiedCertification(certType string) bool {
	for _, c := range p.Certifications {
		if c.Type == certType && c.Verified {
			return true
		}
	}
	return false
}

// DerivedFlags is the sidecar of flags the matcher computes from ingredient
// tokens. It is attached to analysis output, never written back to the store.
type DerivedFlags struct {
	ContainsAnimalProduct  bool `json:"containsAnimalProduct"`
	ContainsPorkDerivative bool `json:"containsPorkDerivative"`
	ContainsAlcohol        bool `json:"containsAlcohol"`
}
