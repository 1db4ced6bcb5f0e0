package usecase

import (
	"fmt"
	"time"

	"github.com/smarties/backend/internal/domain"
)

// SafetyArbitrator merges the deterministic rule judgment with the inferred
// candidate judgment under safety-first precedence: a rule-sourced violation
// can never be downgraded, and an inferred judgment can only raise severity
// or add detail.
type SafetyArbitrator struct{}

// NewSafetyArbitrator creates a new safety arbitrator
func NewSafetyArbitrator() *SafetyArbitrator {
	return &SafetyArbitrator{}
}

// Arbitrate produces the final judgment. inferred is nil when the reasoner
// failed or was skipped; the result is then rule-only and marked as such.
func (a *SafetyArbitrator) Arbitrate(
	productCode, profileID string,
	rules *MatchResult,
	inferred *domain.ComplianceJudgment,
	retrieval *domain.RetrievalResult,
) *domain.ComplianceJudgment {
	judgment := &domain.ComplianceJudgment{
		ProductCode:  productCode,
		ProfileID:    profileID,
		SafetyLevel:  rules.Level(),
		Violations:   append([]domain.Violation(nil), rules.Violations...),
		Warnings:     append([]string(nil), rules.Warnings...),
		DerivedFlags: rules.Flags,
		GeneratedAt:  time.Now(),
	}

	ruleIDs := make(map[string]bool, len(rules.Violations))
	for _, v := range rules.Violations {
		ruleIDs[v.RestrictionID] = true
	}

	if inferred == nil {
		judgment.RuleOnly = true
		judgment.Explanations = append(judgment.Explanations,
			"reasoning unavailable, rule-based result only")
	} else {
		// Final level is the max of both; the inferred level can only be
		// additive, never a downgrade.
		judgment.SafetyLevel = domain.MaxSafetyLevel(judgment.SafetyLevel, inferred.SafetyLevel)
		judgment.Confidence = inferred.Confidence

		for _, v := range inferred.Violations {
			if ruleIDs[v.RestrictionID] {
				continue // rule finding already covers this restriction
			}
			judgment.Violations = append(judgment.Violations, v)
		}
		judgment.Alternatives = inferred.Alternatives
	}

	sortViolations(judgment.Violations)
	judgment.Explanations = append(explainViolations(judgment.Violations), judgment.Explanations...)

	if len(judgment.Alternatives) == 0 {
		judgment.Alternatives = deriveAlternatives(judgment.Violations, retrieval)
	}

	return judgment
}

// explainViolations renders de-duplicated explanations, one per restriction
// id, rule-sourced reasons first. Violations arrive sorted, and rule
// violations precede inferred ones for the same severity because rules were
// appended first and the sort is stable.
func explainViolations(violations []domain.Violation) []string {
	var explanations []string
	seen := make(map[string]bool, len(violations))

	for _, v := range violations {
		if v.Source == domain.SourceRule && !seen[v.RestrictionID] {
			seen[v.RestrictionID] = true
			explanations = append(explanations, v.Reason)
		}
	}
	for _, v := range violations {
		if v.Source == domain.SourceInferred && !seen[v.RestrictionID] {
			seen[v.RestrictionID] = true
			explanations = append(explanations, v.Reason)
		}
	}
	return explanations
}

// deriveAlternatives builds a minimal alternative list from the similar
// products, excluding any product tagged with an allergen the judgment
// already flags.
func deriveAlternatives(violations []domain.Violation, retrieval *domain.RetrievalResult) []domain.Alternative {
	if retrieval == nil || len(retrieval.SimilarProducts) == 0 {
		return nil
	}

	violated := make(map[string]bool, len(violations))
	for _, v := range violations {
		if v.Category == domain.CategoryAllergy {
			violated[v.RestrictionID] = true
		}
	}

	var alternatives []domain.Alternative
	for _, sp := range retrieval.SimilarProducts {
		conflicting := false
		for _, tag := range sp.AllergenTags {
			if violated[tag] {
				conflicting = true
				break
			}
		}
		if conflicting {
			continue
		}
		alternatives = append(alternatives, domain.Alternative{
			ProductCode: sp.Code,
			Name:        sp.Name,
			Reason:      fmt.Sprintf("similar product without the flagged allergens (similarity %.2f)", sp.Score),
			Score:       sp.Score,
		})
		if len(alternatives) == maxAlternatives {
			break
		}
	}
	return alternatives
}
