package usecase

import (
	"github.com/smarties/backend/internal/domain"
)

// Confidence component weights. When the reasoner failed or was skipped its
// weight drops to zero and the remaining weights are renormalized.
const (
	weightCompleteness = 0.4
	weightRuleMatch    = 0.3
	weightReasoner     = 0.3
)

// ConfidenceScorer computes a 0-100 confidence from data completeness,
// rule-match certainty and the reasoner's self-reported confidence, and
// enforces the safety-first floor.
type ConfidenceScorer struct {
	floor float64
}

// NewConfidenceScorer creates a scorer with the given confidence floor.
// A non-positive floor defaults to 60.
func NewConfidenceScorer(floor float64) *ConfidenceScorer {
	if floor <= 0 {
		floor = 60
	}
	return &ConfidenceScorer{floor: floor}
}

// Score computes the weighted confidence for a judgment in [0,100].
// reasonerConfidence is nil when no inferred judgment was available.
func (s *ConfidenceScorer) Score(
	product *domain.Product,
	rules *MatchResult,
	reasonerConfidence *float64,
	reducedContext bool,
) float64 {
	completeness := completenessScore(product, reducedContext)
	ruleCertainty := ruleCertaintyScore(rules)

	var score, totalWeight float64
	score += weightCompleteness * completeness
	totalWeight += weightCompleteness
	score += weightRuleMatch * ruleCertainty
	totalWeight += weightRuleMatch
	if reasonerConfidence != nil {
		score += weightReasoner * (*reasonerConfidence / 100)
		totalWeight += weightReasoner
	}

	score = score / totalWeight * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Apply writes the confidence onto the judgment and enforces the floor:
// below it, the safety level is raised one severity step and an explanation
// is appended. The floor only ever raises severity, never lowers it.
func (s *ConfidenceScorer) Apply(judgment *domain.ComplianceJudgment, confidence float64) {
	judgment.Confidence = confidence
	if confidence >= s.floor {
		return
	}
	judgment.SafetyLevel = judgment.SafetyLevel.Escalate()
	judgment.Explanations = append(judgment.Explanations,
		"insufficient data, review recommended")
}

// completenessScore measures how much of the product record is populated.
// Reduced retrieval context counts against completeness because the
// reasoner saw less corroborating evidence.
func completenessScore(product *domain.Product, reducedContext bool) float64 {
	score := 0.0
	if len(product.Ingredients) > 0 {
		score += 0.4
	}
	if product.Nutrition != nil {
		score += 0.25
	}
	if len(product.Certifications) > 0 {
		score += 0.15
	}
	if product.DataQuality > 0 {
		score += 0.2 * product.DataQuality
	}
	if reducedContext {
		score *= 0.8
	}
	return score
}

// ruleCertaintyScore is high for certification-backed deterministic matches
// and lower when religious/lifestyle checks fell back to ingredient
// inference.
func ruleCertaintyScore(rules *MatchResult) float64 {
	if rules == nil {
		return 0
	}
	if rules.UsedInference {
		return 0.6
	}
	return 1.0
}
