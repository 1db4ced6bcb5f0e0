package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SeverityTier is the user-declared severity of an allergy entry.
type SeverityTier string

const (
	SeverityMild     SeverityTier = "mild"
	SeverityModerate SeverityTier = "moderate"
	SeveritySevere   SeverityTier = "severe"
)

// Strictness is how strictly a religious or lifestyle entry is observed.
type Strictness string

const (
	StrictnessFlexible Strictness = "flexible"
	StrictnessModerate Strictness = "moderate"
	StrictnessStrict   Strictness = "strict"
)

// AllergyRestriction is one allergen the profile owner must avoid.
type AllergyRestriction struct {
	AllergenID   string       `json:"allergenId"` // e.g. "milk", "peanut"
	Severity     SeverityTier `json:"severity"`
	CrossContact bool         `json:"crossContact"` // sensitive to shared-facility warnings
}

// ReligiousRestriction is a religious dietary tradition the profile follows.
type ReligiousRestriction struct {
	Tradition  string     `json:"tradition"` // e.g. "halal", "kosher"
	Strictness Strictness `json:"strictness"`
}

// MedicalRestriction caps one nutrient per serving for a medical condition.
type MedicalRestriction struct {
	Condition string   `json:"condition"` // e.g. "hypertension", "diabetes"
	Nutrient  Nutrient `json:"nutrient"`
	MaxAmount float64  `json:"maxAmount"` // per-serving ceiling, same unit as NutritionFacts
}

// LifestyleRestriction is a dietary pattern such as vegan or keto.
type LifestyleRestriction struct {
	Pattern    string     `json:"pattern"`
	Strictness Strictness `json:"strictness"`
}

// RestrictionProfile is one person's complete set of dietary restrictions.
// Entries within each category are unique by their id field. Family members
// are referenced by profile id only, never embedded.
type RestrictionProfile struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name,omitempty"`
	Allergies []AllergyRestriction   `json:"allergies,omitempty"`
	Religious []ReligiousRestriction `json:"religious,omitempty"`
	Medical   []MedicalRestriction   `json:"medical,omitempty"`
	Lifestyle []LifestyleRestriction `json:"lifestyle,omitempty"`
	FamilyIDs []string               `json:"familyIds,omitempty"`
}

// Fingerprint returns a stable hash over the profile's restriction entries.
// Any restriction edit changes the fingerprint, which changes the cache key,
// so stale judgments computed under the old profile are never served.
//
// Entries are canonicalized and sorted before hashing so field order and
// entry order do not affect the result. Profile id, display name and family
// references are deliberately excluded: they do not influence the judgment.
func (p *RestrictionProfile) Fingerprint() string {
	lines := make([]string, 0,
		len(p.Allergies)+len(p.Religious)+len(p.Medical)+len(p.Lifestyle))

	for _, a := range p.Allergies {
		lines = append(lines, fmt.Sprintf("a|%s|%s|%t", a.AllergenID, a.Severity, a.CrossContact))
	}
	for _, r := range p.Religious {
		lines = append(lines, fmt.Sprintf("r|%s|%s", r.Tradition, r.Strictness))
	}
	for _, m := range p.Medical {
		lines = append(lines, fmt.Sprintf("m|%s|%s|%g", m.Condition, m.Nutrient, m.MaxAmount))
	}
	for _, l := range p.Lifestyle {
		lines = append(lines, fmt.Sprintf("l|%s|%s", l.Pattern, l.Strictness))
	}

	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// IsEmpty reports whether the profile carries no restrictions at all.
func (p *RestrictionProfile) IsEmpty() bool {
	return len(p.Allergies) == 0 && len(p.Religious) == 0 &&
		len(p.Medical) == 0 && len(p.Lifestyle) == 0
}
