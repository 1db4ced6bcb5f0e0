package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/smarties/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	ingredientSplitRegex = regexp.MustCompile(`[,;()\[\]]`)
	punctuationRegex     = regexp.MustCompile(`[^\w\s-]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// allergenSynonyms expands an allergen id to the ingredient tokens that
// indicate its presence. Derived ingredients (casein, whey, lecithin) count
// the same as the allergen itself.
var allergenSynonyms = map[string][]string{
	"milk":      {"milk", "dairy", "lactose", "casein", "caseinate", "whey", "buttermilk", "butter", "cream", "ghee", "curd"},
	"egg":       {"egg", "eggs", "albumin", "albumen", "ovalbumin", "mayonnaise", "meringue", "lysozyme"},
	"peanut":    {"peanut", "peanuts", "groundnut", "arachis"},
	"tree-nut":  {"almond", "almonds", "cashew", "cashews", "walnut", "walnuts", "pecan", "pecans", "hazelnut", "hazelnuts", "pistachio", "pistachios", "macadamia", "praline"},
	"soy":       {"soy", "soya", "soybean", "soybeans", "edamame", "tofu", "tempeh", "miso", "soy-lecithin"},
	"wheat":     {"wheat", "gluten", "flour", "semolina", "spelt", "farina", "durum", "couscous", "seitan", "malt"},
	"fish":      {"fish", "anchovy", "anchovies", "cod", "salmon", "tuna", "tilapia", "sardine", "sardines", "fish-sauce"},
	"shellfish": {"shrimp", "prawn", "prawns", "crab", "lobster", "crayfish", "scallop", "scallops", "oyster", "oysters", "mussel", "mussels", "clam", "clams"},
	"sesame":    {"sesame", "tahini", "benne", "gingelly"},
}

// porkTokens and alcoholTokens back religious inference when no verified
// certification is present.
var porkTokens = []string{"pork", "bacon", "ham", "lard", "gelatin", "gelatine", "prosciutto", "pancetta", "chorizo", "pepperoni"}

var alcoholTokens = []string{"alcohol", "wine", "beer", "rum", "brandy", "bourbon", "whiskey", "ethanol", "liqueur", "sake", "vermouth"}

// animalTokens indicate any animal-derived ingredient. Used by vegan/
// vegetarian matching and the derived-flags sidecar.
var animalTokens = []string{
	"meat", "beef", "pork", "chicken", "turkey", "lamb", "veal", "duck", "bacon", "ham",
	"fish", "anchovy", "tuna", "salmon", "shrimp", "crab", "lobster", "oyster",
	"gelatin", "gelatine", "lard", "tallow", "rennet", "carmine", "cochineal", "isinglass", "shellac",
}

// meatTokens is the subset forbidden for vegetarians (animal flesh and
// slaughter by-products; dairy/egg/honey are allowed).
var meatTokens = []string{
	"meat", "beef", "pork", "chicken", "turkey", "lamb", "veal", "duck", "bacon", "ham",
	"fish", "anchovy", "tuna", "salmon", "shrimp", "crab", "lobster", "oyster",
	"gelatin", "gelatine", "lard", "tallow", "rennet",
}

// veganOnlyTokens extends the animal set with dairy, egg and honey
// derivatives for the vegan taxonomy.
var veganOnlyTokens = []string{
	"milk", "dairy", "lactose", "casein", "whey", "butter", "cream", "ghee", "cheese", "yogurt",
	"egg", "eggs", "albumin", "honey", "beeswax",
}

// lifestyleTaxonomy maps a lifestyle pattern id to its forbidden tokens.
var lifestyleTaxonomy = map[string][]string{
	"vegan":       append(append([]string{}, animalTokens...), veganOnlyTokens...),
	"vegetarian":  meatTokens,
	"pescatarian": {"meat", "beef", "pork", "chicken", "turkey", "lamb", "veal", "duck", "bacon", "ham", "gelatin", "lard"},
	"keto":        {"sugar", "corn-syrup", "high-fructose", "dextrose", "maltodextrin", "rice", "pasta", "bread", "flour", "potato"},
	"paleo":       {"wheat", "flour", "bread", "pasta", "rice", "corn", "soy", "lentil", "lentils", "peanut", "sugar", "dairy", "milk", "cheese"},
	"gluten-free": {"wheat", "gluten", "barley", "rye", "malt", "semolina", "spelt", "farina", "durum", "couscous", "seitan"},
}

// religiousTraditions maps a tradition id to its forbidden-token groups.
// A verified certification of the matching type short-circuits inference.
var religiousTraditions = map[string]struct {
	certTypes []string
	forbidden [][]string
}{
	"halal": {
		certTypes: []string{"halal"},
		forbidden: [][]string{porkTokens, alcoholTokens},
	},
	"kosher": {
		certTypes: []string{"kosher"},
		forbidden: [][]string{porkTokens, {"shrimp", "prawn", "crab", "lobster", "oyster", "clam", "scallop", "squid", "octopus"}},
	},
	"hindu-vegetarian": {
		certTypes: []string{"vegetarian", "vegan"},
		forbidden: [][]string{{"beef", "veal"}, meatTokens},
	},
}

// MatchResult is the matcher's partial judgment: rule-sourced violations and
// warnings only, before arbitration with the inferred judgment.
type MatchResult struct {
	Violations []domain.Violation
	Warnings   []string
	Flags      domain.DerivedFlags
	// UsedInference is set when religious or lifestyle matching fell back to
	// ingredient inference instead of certification. The Confidence Scorer
	// treats such matches as less certain.
	UsedInference bool
}

// Level returns the rule-only safety level: the most severe violation, or
// safe when there are none.
func (r *MatchResult) Level() domain.SafetyLevel {
	level := domain.SafetySafe
	for _, v := range r.Violations {
		level = domain.MaxSafetyLevel(level, v.Severity)
	}
	return level
}

// RestrictionMatcher deterministically evaluates a product against one
// restriction profile. Pure function of its inputs; no external calls.
type RestrictionMatcher struct{}

// NewRestrictionMatcher creates a new restriction matcher
func NewRestrictionMatcher() *RestrictionMatcher {
	return &RestrictionMatcher{}
}

// Match evaluates every restriction category and returns the rule-sourced
// partial judgment. Violations come back ordered by severity descending,
// then by category (allergy > religious > medical > lifestyle).
func (m *RestrictionMatcher) Match(product *domain.Product, profile *domain.RestrictionProfile) *MatchResult {
	result := &MatchResult{}

	tokens := product.IngredientTokens
	if len(tokens) == 0 {
		tokens = NormalizeIngredients(product.Ingredients)
	}
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	result.Flags = deriveFlags(tokenSet)

	m.matchAllergies(product, profile, tokenSet, result)
	m.matchReligious(product, profile, tokenSet, result)
	m.matchMedical(product, profile, result)
	m.matchLifestyle(profile, tokenSet, result)

	sortViolations(result.Violations)
	return result
}

// NormalizeIngredients lowercases, strips punctuation except internal
// hyphens, splits on commas/semicolons/parentheses and deduplicates while
// preserving the original order.
func NormalizeIngredients(raw []string) []string {
	var tokens []string
	seen := make(map[string]bool)

	for _, entry := range raw {
		for _, part := range ingredientSplitRegex.Split(entry, -1) {
			part = strings.ToLower(part)
			part = punctuationRegex.ReplaceAllString(part, " ")
			part = multipleSpacesRegex.ReplaceAllString(part, " ")
			part = strings.Trim(part, " -")
			if part == "" {
				continue
			}
			for _, word := range strings.Fields(part) {
				word = strings.Trim(word, "-")
				if word == "" || seen[word] {
					continue
				}
				seen[word] = true
				tokens = append(tokens, word)
			}
		}
	}
	return tokens
}

// matchAllergies checks every allergy entry against ingredient tokens and
// the product's explicit allergen warnings.
func (m *RestrictionMatcher) matchAllergies(product *domain.Product, profile *domain.RestrictionProfile, tokenSet map[string]bool, result *MatchResult) {
	explicitTags := lowerSet(product.AllergenTags)
	mayContain := lowerSet(product.MayContainTags)

	for _, allergy := range profile.Allergies {
		synonyms := allergenSynonyms[allergy.AllergenID]
		if len(synonyms) == 0 {
			synonyms = []string{allergy.AllergenID}
		}

		if matched, token := firstTokenMatch(synonyms, tokenSet, explicitTags); matched {
			result.Violations = append(result.Violations, domain.Violation{
				RestrictionID: allergy.AllergenID,
				Category:      domain.CategoryAllergy,
				Severity:      allergySeverityLevel(allergy.Severity),
				Reason:        fmt.Sprintf("contains %s (%s allergy, %s severity)", token, allergy.AllergenID, allergy.Severity),
				Source:        domain.SourceRule,
			})
			continue
		}

		// Shared-facility warning counts as a violation for cross-contact
		// sensitive entries, at caution or worse.
		if allergy.CrossContact {
			if matched, token := firstTokenMatch(synonyms, nil, mayContain); matched {
				severity := domain.MaxSafetyLevel(domain.SafetyCaution, allergySeverityLevel(allergy.Severity))
				result.Violations = append(result.Violations, domain.Violation{
					RestrictionID: allergy.AllergenID,
					Category:      domain.CategoryAllergy,
					Severity:      severity,
					Reason:        fmt.Sprintf("may contain %s (shared facility, cross-contact sensitive)", token),
					Source:        domain.SourceRule,
				})
			}
		}
	}
}

// matchReligious prefers verified certifications; without one it falls back
// to ingredient inference and flags the result as lower-confidence.
func (m *RestrictionMatcher) matchReligious(product *domain.Product, profile *domain.RestrictionProfile, tokenSet map[string]bool, result *MatchResult) {
	for _, religious := range profile.Religious {
		tradition, known := religiousTraditions[religious.Tradition]
		if !known {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unknown religious tradition %q, not evaluated", religious.Tradition))
			continue
		}

		certified := false
		for _, certType := range tradition.certTypes {
			if product.HasVerifiedCertification(certType) {
				certified = true
				break
			}
		}
		if certified {
			// Certification is authoritative; skip ingredient inference.
			continue
		}

		result.UsedInference = true
		violated := false
		for _, group := range tradition.forbidden {
			if matched, token := firstTokenMatch(group, tokenSet, nil); matched {
				result.Violations = append(result.Violations, domain.Violation{
					RestrictionID: religious.Tradition,
					Category:      domain.CategoryReligious,
					Severity:      religiousSeverityLevel(religious.Strictness),
					Reason:        fmt.Sprintf("contains %s, not permitted under %s", token, religious.Tradition),
					Source:        domain.SourceRule,
					Inferred:      true,
				})
				violated = true
				break
			}
		}
		if !violated {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no %s certification found; compliance inferred from ingredients only", religious.Tradition))
		}
	}
}

// matchMedical compares nutrient amounts against each medical entry's
// threshold. Exceeding it is a violation; being within 10% is a warning.
func (m *RestrictionMatcher) matchMedical(product *domain.Product, profile *domain.RestrictionProfile, result *MatchResult) {
	for _, medical := range profile.Medical {
		amount, ok := product.Nutrition.Amount(medical.Nutrient)
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no %s data available to check %s threshold", medical.Nutrient, medical.Condition))
			continue
		}

		if amount > medical.MaxAmount {
			result.Violations = append(result.Violations, domain.Violation{
				RestrictionID: medical.Condition,
				Category:      domain.CategoryMedical,
				Severity:      domain.SafetyCaution,
				Reason: fmt.Sprintf("%s %.1f exceeds %s limit of %.1f per serving",
					medical.Nutrient, amount, medical.Condition, medical.MaxAmount),
				Source: domain.SourceRule,
			})
		} else if amount >= medical.MaxAmount*0.9 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s %.1f is within 10%% of the %s limit of %.1f",
					medical.Nutrient, amount, medical.Condition, medical.MaxAmount))
		}
	}
}

// matchLifestyle matches ingredient tokens against the lifestyle taxonomy.
func (m *RestrictionMatcher) matchLifestyle(profile *domain.RestrictionProfile, tokenSet map[string]bool, result *MatchResult) {
	for _, lifestyle := range profile.Lifestyle {
		forbidden, known := lifestyleTaxonomy[lifestyle.Pattern]
		if !known {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unknown lifestyle pattern %q, not evaluated", lifestyle.Pattern))
			continue
		}
		result.UsedInference = true

		if matched, token := firstTokenMatch(forbidden, tokenSet, nil); matched {
			result.Violations = append(result.Violations, domain.Violation{
				RestrictionID: lifestyle.Pattern,
				Category:      domain.CategoryLifestyle,
				Severity:      domain.SafetyCaution,
				Reason:        fmt.Sprintf("contains %s, not %s", token, lifestyle.Pattern),
				Source:        domain.SourceRule,
				Inferred:      true,
			})
		}
	}
}

// deriveFlags computes the derived-flags sidecar from normalized tokens.
func deriveFlags(tokenSet map[string]bool) domain.DerivedFlags {
	flags := domain.DerivedFlags{}
	if matched, _ := firstTokenMatch(animalTokens, tokenSet, nil); matched {
		flags.ContainsAnimalProduct = true
	}
	if matched, _ := firstTokenMatch(porkTokens, tokenSet, nil); matched {
		flags.ContainsPorkDerivative = true
	}
	if matched, _ := firstTokenMatch(alcoholTokens, tokenSet, nil); matched {
		flags.ContainsAlcohol = true
	}
	return flags
}

// allergySeverityLevel maps a profile severity tier to a safety level.
func allergySeverityLevel(tier domain.SeverityTier) domain.SafetyLevel {
	if tier == domain.SeveritySevere {
		return domain.SafetyDanger
	}
	return domain.SafetyCaution
}

// religiousSeverityLevel maps observance strictness to a safety level.
func religiousSeverityLevel(strictness domain.Strictness) domain.SafetyLevel {
	if strictness == domain.StrictnessStrict {
		return domain.SafetyDanger
	}
	return domain.SafetyCaution
}

// firstTokenMatch returns the first candidate found in either set.
func firstTokenMatch(candidates []string, tokens map[string]bool, tags map[string]bool) (bool, string) {
	for _, c := range candidates {
		if tokens[c] || tags[c] {
			return true, c
		}
	}
	return false, ""
}

// lowerSet builds a lowercase lookup set from a tag list.
func lowerSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// sortViolations orders by severity descending, then category
// (allergy > religious > medical > lifestyle), keeping input order last.
func sortViolations(violations []domain.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Severity.Rank() != violations[j].Severity.Rank() {
			return violations[i].Severity.Rank() > violations[j].Severity.Rank()
		}
		return violations[i].Category.Rank() < violations[j].Category.Rank()
	})
}
