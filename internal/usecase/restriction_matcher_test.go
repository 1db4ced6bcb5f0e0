package usecase

import (
	"strings"
	"testing"

	"github.com/smarties/backend/internal/domain"
)

func milkChocolateProduct() *domain.Product {
	return &domain.Product{
		Code:        "0123456789012",
		Name:        "Milk Chocolate Bar",
		Ingredients: []string{"milk, sugar, cocoa"},
	}
}

func severeMilkProfile() *domain.RestrictionProfile {
	return &domain.RestrictionProfile{
		ID:        "p-milk",
		Allergies: []domain.AllergyRestriction{{AllergenID: "milk", Severity: domain.SeveritySevere}},
	}
}

func TestNormalizeIngredients(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{
			name: "splits on commas and lowercases",
			raw:  []string{"Milk, Sugar, Cocoa"},
			want: []string{"milk", "sugar", "cocoa"},
		},
		{
			name: "splits on semicolons and parentheses",
			raw:  []string{"wheat flour; water (filtered)"},
			want: []string{"wheat", "flour", "water", "filtered"},
		},
		{
			name: "keeps internal hyphens",
			raw:  []string{"corn-syrup, salt"},
			want: []string{"corn-syrup", "salt"},
		},
		{
			name: "strips punctuation and deduplicates preserving order",
			raw:  []string{"Sugar!, sugar, COCOA*"},
			want: []string{"sugar", "cocoa"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeIngredients(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeIngredients() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMatch_SevereAllergyIsDanger(t *testing.T) {
	matcher := NewRestrictionMatcher()

	result := matcher.Match(milkChocolateProduct(), severeMilkProfile())

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(result.Violations))
	}
	v := result.Violations[0]
	if v.RestrictionID != "milk" {
		t.Errorf("RestrictionID = %s, want milk", v.RestrictionID)
	}
	if v.Severity != domain.SafetyDanger {
		t.Errorf("Severity = %s, want danger", v.Severity)
	}
	if v.Source != domain.SourceRule {
		t.Errorf("Source = %s, want rule", v.Source)
	}
	if result.Level() != domain.SafetyDanger {
		t.Errorf("Level() = %s, want danger", result.Level())
	}
}

func TestMatch_AllergenSynonymsAndTags(t *testing.T) {
	matcher := NewRestrictionMatcher()

	t.Run("matches derived ingredient via synonym set", func(t *testing.T) {
		product := &domain.Product{Ingredients: []string{"whey protein, salt"}}
		result := matcher.Match(product, severeMilkProfile())
		if len(result.Violations) != 1 {
			t.Fatalf("violations = %d, want 1 for whey", len(result.Violations))
		}
	})

	t.Run("matches explicit allergen tag without ingredient match", func(t *testing.T) {
		product := &domain.Product{
			Ingredients:  []string{"sugar, cocoa"},
			AllergenTags: []string{"milk"},
		}
		result := matcher.Match(product, severeMilkProfile())
		if len(result.Violations) != 1 {
			t.Fatalf("violations = %d, want 1 for allergen tag", len(result.Violations))
		}
	})

	t.Run("may-contain only violates for cross-contact sensitive entries", func(t *testing.T) {
		product := &domain.Product{
			Ingredients:    []string{"sugar, cocoa"},
			MayContainTags: []string{"peanut"},
		}

		insensitive := &domain.RestrictionProfile{
			Allergies: []domain.AllergyRestriction{{AllergenID: "peanut", Severity: domain.SeverityMild}},
		}
		if got := matcher.Match(product, insensitive); len(got.Violations) != 0 {
			t.Errorf("violations = %d, want 0 without cross-contact sensitivity", len(got.Violations))
		}

		sensitive := &domain.RestrictionProfile{
			Allergies: []domain.AllergyRestriction{{AllergenID: "peanut", Severity: domain.SeverityMild, CrossContact: true}},
		}
		result := matcher.Match(product, sensitive)
		if len(result.Violations) != 1 {
			t.Fatalf("violations = %d, want 1 for cross-contact", len(result.Violations))
		}
		if result.Violations[0].Severity.Rank() < domain.SafetyCaution.Rank() {
			t.Errorf("cross-contact severity = %s, want at least caution", result.Violations[0].Severity)
		}
	})
}

func TestMatch_Religious(t *testing.T) {
	matcher := NewRestrictionMatcher()
	halalProfile := &domain.RestrictionProfile{
		Religious: []domain.ReligiousRestriction{{Tradition: "halal", Strictness: domain.StrictnessStrict}},
	}

	t.Run("verified certification short-circuits inference", func(t *testing.T) {
		product := &domain.Product{
			Ingredients:    []string{"beef gelatin, sugar"},
			Certifications: []domain.Certification{{Type: "halal", Body: "IFANCA", Verified: true}},
		}
		result := matcher.Match(product, halalProfile)
		if len(result.Violations) != 0 {
			t.Errorf("violations = %d, want 0 with verified halal certification", len(result.Violations))
		}
		if result.UsedInference {
			t.Errorf("UsedInference = true, want false when certified")
		}
	})

	t.Run("unverified certification does not count", func(t *testing.T) {
		product := &domain.Product{
			Ingredients:    []string{"pork gelatin"},
			Certifications: []domain.Certification{{Type: "halal", Verified: false}},
		}
		result := matcher.Match(product, halalProfile)
		if len(result.Violations) != 1 {
			t.Fatalf("violations = %d, want 1 despite unverified certification", len(result.Violations))
		}
		if !result.Violations[0].Inferred {
			t.Errorf("violation should be flagged inferred without certification")
		}
	})

	t.Run("no certification and clean ingredients yields warning only", func(t *testing.T) {
		product := &domain.Product{Ingredients: []string{"wheat flour, water, yeast, salt"}}
		result := matcher.Match(product, halalProfile)
		if len(result.Violations) != 0 {
			t.Errorf("violations = %d, want 0 for clean ingredients", len(result.Violations))
		}
		if !result.UsedInference {
			t.Errorf("UsedInference = false, want true without certification")
		}
		found := false
		for _, w := range result.Warnings {
			if strings.Contains(w, "halal") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a warning noting inferred halal compliance, got %v", result.Warnings)
		}
	})

	t.Run("alcohol violates halal", func(t *testing.T) {
		product := &domain.Product{Ingredients: []string{"wine vinegar base, alcohol"}}
		result := matcher.Match(product, halalProfile)
		if len(result.Violations) != 1 {
			t.Fatalf("violations = %d, want 1 for alcohol", len(result.Violations))
		}
		if result.Violations[0].Severity != domain.SafetyDanger {
			t.Errorf("strict observance severity = %s, want danger", result.Violations[0].Severity)
		}
	})
}

func TestMatch_Medical(t *testing.T) {
	matcher := NewRestrictionMatcher()
	profile := &domain.RestrictionProfile{
		Medical: []domain.MedicalRestriction{
			{Condition: "hypertension", Nutrient: domain.NutrientSodium, MaxAmount: 500},
		},
	}

	t.Run("violation when threshold exceeded", func(t *testing.T) {
		product := &domain.Product{
			Ingredients: []string{"salted crackers"},
			Nutrition:   &domain.NutritionFacts{SodiumMg: 750},
		}
		result := matcher.Match(product, profile)
		if len(result.Violations) != 1 {
			t.Fatalf("violations = %d, want 1", len(result.Violations))
		}
		if result.Violations[0].Category != domain.CategoryMedical {
			t.Errorf("Category = %s, want medical", result.Violations[0].Category)
		}
	})

	t.Run("warning when within 10 percent of threshold", func(t *testing.T) {
		product := &domain.Product{
			Ingredients: []string{"crackers"},
			Nutrition:   &domain.NutritionFacts{SodiumMg: 460},
		}
		result := matcher.Match(product, profile)
		if len(result.Violations) != 0 {
			t.Errorf("violations = %d, want 0 inside threshold", len(result.Violations))
		}
		if len(result.Warnings) == 0 {
			t.Errorf("expected warning within 10%% of threshold")
		}
	})

	t.Run("missing nutrition data yields warning not violation", func(t *testing.T) {
		product := &domain.Product{Ingredients: []string{"crackers"}}
		result := matcher.Match(product, profile)
		if len(result.Violations) != 0 {
			t.Errorf("violations = %d, want 0 with missing nutrition", len(result.Violations))
		}
		if len(result.Warnings) == 0 {
			t.Errorf("expected warning about missing nutrition data")
		}
	})
}

func TestMatch_Lifestyle(t *testing.T) {
	matcher := NewRestrictionMatcher()

	t.Run("vegan forbids dairy derivative", func(t *testing.T) {
		product := &domain.Product{Ingredients: []string{"oats, whey, salt"}}
		profile := &domain.RestrictionProfile{
			Lifestyle: []domain.LifestyleRestriction{{Pattern: "vegan", Strictness: domain.StrictnessStrict}},
		}
		result := matcher.Match(product, profile)
		if len(result.Violations) != 1 {
			t.Fatalf("violations = %d, want 1", len(result.Violations))
		}
		if result.Violations[0].Category != domain.CategoryLifestyle {
			t.Errorf("Category = %s, want lifestyle", result.Violations[0].Category)
		}
	})

	t.Run("vegetarian allows dairy", func(t *testing.T) {
		product := &domain.Product{Ingredients: []string{"milk, oats"}}
		profile := &domain.RestrictionProfile{
			Lifestyle: []domain.LifestyleRestriction{{Pattern: "vegetarian", Strictness: domain.StrictnessModerate}},
		}
		result := matcher.Match(product, profile)
		if len(result.Violations) != 0 {
			t.Errorf("violations = %d, want 0 for dairy under vegetarian", len(result.Violations))
		}
	})
}

func TestMatch_ViolationOrdering(t *testing.T) {
	matcher := NewRestrictionMatcher()
	product := &domain.Product{
		Ingredients: []string{"milk, pork gelatin, sugar"},
		Nutrition:   &domain.NutritionFacts{SugarG: 40},
	}
	profile := &domain.RestrictionProfile{
		Allergies: []domain.AllergyRestriction{{AllergenID: "milk", Severity: domain.SeveritySevere}},
		Religious: []domain.ReligiousRestriction{{Tradition: "halal", Strictness: domain.StrictnessStrict}},
		Medical:   []domain.MedicalRestriction{{Condition: "diabetes", Nutrient: domain.NutrientSugar, MaxAmount: 20}},
		Lifestyle: []domain.LifestyleRestriction{{Pattern: "vegan", Strictness: domain.StrictnessStrict}},
	}

	result := matcher.Match(product, profile)
	if len(result.Violations) != 4 {
		t.Fatalf("violations = %d, want 4", len(result.Violations))
	}

	// Danger-level first; among equal severity, allergy before religious,
	// caution categories medical before lifestyle.
	if result.Violations[0].Category != domain.CategoryAllergy {
		t.Errorf("first violation category = %s, want allergy", result.Violations[0].Category)
	}
	if result.Violations[1].Category != domain.CategoryReligious {
		t.Errorf("second violation category = %s, want religious", result.Violations[1].Category)
	}
	for i := 1; i < len(result.Violations); i++ {
		if result.Violations[i].Severity.Rank() > result.Violations[i-1].Severity.Rank() {
			t.Errorf("violations not ordered by severity descending at index %d", i)
		}
	}
}

func TestMatch_DerivedFlags(t *testing.T) {
	matcher := NewRestrictionMatcher()
	product := &domain.Product{Ingredients: []string{"pork, wine, sugar"}}

	result := matcher.Match(product, &domain.RestrictionProfile{})
	if !result.Flags.ContainsPorkDerivative {
		t.Errorf("ContainsPorkDerivative = false, want true")
	}
	if !result.Flags.ContainsAlcohol {
		t.Errorf("ContainsAlcohol = false, want true")
	}
	if !result.Flags.ContainsAnimalProduct {
		t.Errorf("ContainsAnimalProduct = false, want true")
	}
}
