package domain

import "time"

// SafetyLevel is the overall verdict for a product against one profile.
type SafetyLevel string

const (
	SafetySafe    SafetyLevel = "safe"
	SafetyCaution SafetyLevel = "caution"
	SafetyDanger  SafetyLevel = "danger"
)

// severityRank orders safety levels: danger > caution > safe.
var severityRank = map[SafetyLevel]int{
	SafetySafe:    0,
	SafetyCaution: 1,
	SafetyDanger:  2,
}

// Rank returns the numeric severity of the level. Unknown levels rank as
// danger so a corrupted level can never read as safe.
func (s SafetyLevel) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SafetyDanger]
}

// Valid reports whether the level is one of the three known values.
func (s SafetyLevel) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// MaxSafetyLevel returns the more severe of two levels.
func MaxSafetyLevel(a, b SafetyLevel) SafetyLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Escalate raises a level by one severity step. Danger stays danger.
func (s SafetyLevel) Escalate() SafetyLevel {
	switch s {
	case SafetySafe:
		return SafetyCaution
	case SafetyCaution:
		return SafetyDanger
	}
	return SafetyDanger
}

// SourceKind records whether a violation came from deterministic rule
// evaluation or from the reasoning service.
type SourceKind string

const (
	SourceRule     SourceKind = "rule"
	SourceInferred SourceKind = "inferred"
)

// RestrictionCategory orders violations within a judgment:
// allergy > religious > medical > lifestyle.
type RestrictionCategory string

const (
	CategoryAllergy   RestrictionCategory = "allergy"
	CategoryReligious RestrictionCategory = "religious"
	CategoryMedical   RestrictionCategory = "medical"
	CategoryLifestyle RestrictionCategory = "lifestyle"
)

var categoryRank = map[RestrictionCategory]int{
	CategoryAllergy:   0,
	CategoryReligious: 1,
	CategoryMedical:   2,
	CategoryLifestyle: 3,
}

// Rank returns the ordering position of the category, lower first.
func (c RestrictionCategory) Rank() int {
	if r, ok := categoryRank[c]; ok {
		return r
	}
	return len(categoryRank)
}

// Violation is one restriction the product breaks.
type Violation struct {
	RestrictionID string              `json:"restrictionId"`
	Category      RestrictionCategory `json:"category"`
	Severity      SafetyLevel         `json:"severity"`
	Reason        string              `json:"reason"`
	Source        SourceKind          `json:"source"`
	Inferred      bool                `json:"inferred,omitempty"` // rule-sourced but derived without certification backing
}

// Alternative references a safer product suggestion.
type Alternative struct {
	ProductCode string  `json:"productCode,omitempty"`
	Name        string  `json:"name"`
	Reason      string  `json:"reason,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// ComplianceJudgment is the final result of one analysis. It is built once
// and never mutated; corrections produce a new judgment.
type ComplianceJudgment struct {
	ProductCode  string        `json:"productCode"`
	ProfileID    string        `json:"profileId"`
	SafetyLevel  SafetyLevel   `json:"safetyLevel"`
	Violations   []Violation   `json:"violations,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Confidence   float64       `json:"confidence"` // 0-100
	Explanations []string      `json:"explanations,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	RuleOnly     bool          `json:"ruleOnly,omitempty"` // reasoning service unavailable, rule-based result only
	DerivedFlags DerivedFlags  `json:"derivedFlags"`
	GeneratedAt  time.Time     `json:"generatedAt"`
}

// HouseholdResult is the family-mode aggregate over multiple profiles.
type HouseholdResult struct {
	PerProfile   map[string]*ComplianceJudgment `json:"perProfile"`
	Household    SafetyLevel                    `json:"household"`
	Explanations []string                       `json:"explanations,omitempty"`
}
