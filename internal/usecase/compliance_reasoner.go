package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

// CallState tracks one reasoning-service call. Every call starts pending and
// ends in exactly one terminal state; only succeeded yields a judgment.
type CallState string

const (
	CallPending            CallState = "pending"
	CallSucceeded          CallState = "succeeded"
	CallTimedOut           CallState = "timed_out"
	CallServiceUnavailable CallState = "service_unavailable"
	CallParseFailed        CallState = "parse_failed"
)

// maxAlternatives caps suggestions requested from the reasoning service.
const maxAlternatives = 2

// ComplianceReasoner turns a RAGContext into a structured prompt, invokes
// the reasoning service and parses the response into a candidate judgment.
// Any non-succeeded outcome propagates as "no inferred judgment available",
// never as an implicit safe.
type ComplianceReasoner struct {
	client  domain.ReasoningClient
	log     *logger.Logger
	timeout time.Duration
}

// NewComplianceReasoner creates a compliance reasoner. A zero timeout
// defaults to 1.5s, leaving headroom inside the overall response budget.
func NewComplianceReasoner(client domain.ReasoningClient, log *logger.Logger, timeout time.Duration) *ComplianceReasoner {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &ComplianceReasoner{client: client, log: log, timeout: timeout}
}

// Infer runs one bounded reasoning call. The returned judgment is non-nil
// only when the state is CallSucceeded.
func (r *ComplianceReasoner) Infer(ctx context.Context, ragCtx *domain.RAGContext) (*domain.ComplianceJudgment, CallState) {
	prompt := BuildPrompt(ragCtx)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Complete(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			r.log.Warn("reasoning call timed out", "timeout", r.timeout)
			return nil, CallTimedOut
		}
		r.log.Warn("reasoning service unavailable", "error", err)
		return nil, CallServiceUnavailable
	}

	judgment, err := ParseReasonerResponse(raw, ragCtx)
	if err != nil {
		r.log.Warn("reasoning response rejected", "error", err)
		return nil, CallParseFailed
	}
	return judgment, CallSucceeded
}

// BuildPrompt renders the fixed-shape analysis request. The response
// contract is spelled out verbatim so parsing can be strict.
func BuildPrompt(ragCtx *domain.RAGContext) string {
	var sb strings.Builder

	sb.WriteString("You are a dietary compliance analyst. Assess whether the product below is safe for the given dietary profile.\n\n")

	fmt.Fprintf(&sb, "PRODUCT: %s", ragCtx.Product.Name)
	if ragCtx.Product.Brand != "" {
		fmt.Fprintf(&sb, " (%s)", ragCtx.Product.Brand)
	}
	sb.WriteString("\nINGREDIENTS: ")
	sb.WriteString(strings.Join(ragCtx.Product.Ingredients, ", "))
	sb.WriteString("\n")

	writeProfileSection(&sb, ragCtx.Profile)

	fmt.Fprintf(&sb, "RULE FINDINGS: %s\n", ragCtx.RuleSummary)

	if len(ragCtx.SimilarIngredients) > 0 {
		sb.WriteString("SIMILAR INGREDIENTS:\n")
		for _, si := range ragCtx.SimilarIngredients {
			fmt.Fprintf(&sb, "- %s (similarity %.2f)", si.Name, si.Score)
			if si.Gloss != "" {
				fmt.Fprintf(&sb, ": %s", si.Gloss)
			}
			sb.WriteString("\n")
		}
	}
	if len(ragCtx.SimilarProducts) > 0 {
		sb.WriteString("SIMILAR PRODUCTS:\n")
		for _, sp := range ragCtx.SimilarProducts {
			fmt.Fprintf(&sb, "- %s [%s] (similarity %.2f)\n", sp.Name, sp.Code, sp.Score)
		}
	}
	if len(ragCtx.Guidelines) > 0 {
		sb.WriteString("GUIDELINES:\n")
		for _, g := range ragCtx.Guidelines {
			fmt.Fprintf(&sb, "- [%s] %s\n", g.Category, g.Text)
		}
	}

	fmt.Fprintf(&sb, `
Respond with a single JSON object and nothing else, exactly this shape:
{
  "safetyLevel": "safe" | "caution" | "danger",
  "violations": [{"restrictionId": string, "reason": string}],
  "confidence": number between 0 and 100,
  "alternatives": [{"name": string, "reason": string}]
}
Rules: never remove or contradict a rule finding; you may only add violations
or raise severity. List at most %d alternatives. If unsure, prefer the more
severe safety level.
`, maxAlternatives)

	return sb.String()
}

func writeProfileSection(sb *strings.Builder, profile *domain.RestrictionProfile) {
	sb.WriteString("DIETARY PROFILE:\n")
	for _, a := range profile.Allergies {
		fmt.Fprintf(sb, "- allergy: %s (%s", a.AllergenID, a.Severity)
		if a.CrossContact {
			sb.WriteString(", cross-contact sensitive")
		}
		sb.WriteString(")\n")
	}
	for _, r := range profile.Religious {
		fmt.Fprintf(sb, "- religious: %s (%s)\n", r.Tradition, r.Strictness)
	}
	for _, m := range profile.Medical {
		fmt.Fprintf(sb, "- medical: %s, max %s %.1f per serving\n", m.Condition, m.Nutrient, m.MaxAmount)
	}
	for _, l := range profile.Lifestyle {
		fmt.Fprintf(sb, "- lifestyle: %s (%s)\n", l.Pattern, l.Strictness)
	}
}

// reasonerResponse is the strict intermediate schema for the raw response.
// Pointers distinguish missing fields from zero values.
type reasonerResponse struct {
	SafetyLevel *string `json:"safetyLevel"`
	Violations  []struct {
		RestrictionID string `json:"restrictionId"`
		Reason        string `json:"reason"`
	} `json:"violations"`
	Confidence   *float64 `json:"confidence"`
	Alternatives []struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	} `json:"alternatives"`
}

// ParseReasonerResponse parses the raw reasoning-service text into a
// candidate judgment. The response is untrusted input: an unknown safety
// level, out-of-range confidence or malformed structure is rejected rather
// than coerced, since a best-effort guess could mask a wrong safety level.
func ParseReasonerResponse(raw string, ragCtx *domain.RAGContext) (*domain.ComplianceJudgment, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrReasoningParse)
	}

	var resp reasonerResponse
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReasoningParse, err)
	}

	if resp.SafetyLevel == nil {
		return nil, fmt.Errorf("%w: missing safetyLevel", domain.ErrReasoningParse)
	}
	level := domain.SafetyLevel(*resp.SafetyLevel)
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown safetyLevel %q", domain.ErrReasoningParse, *resp.SafetyLevel)
	}

	if resp.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", domain.ErrReasoningParse)
	}
	if *resp.Confidence < 0 || *resp.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %g out of range", domain.ErrReasoningParse, *resp.Confidence)
	}

	judgment := &domain.ComplianceJudgment{
		ProductCode: ragCtx.Product.Code,
		ProfileID:   ragCtx.Profile.ID,
		SafetyLevel: level,
		Confidence:  *resp.Confidence,
		GeneratedAt: time.Now(),
	}

	for _, v := range resp.Violations {
		if v.RestrictionID == "" || v.Reason == "" {
			return nil, fmt.Errorf("%w: violation missing restrictionId or reason", domain.ErrReasoningParse)
		}
		judgment.Violations = append(judgment.Violations, domain.Violation{
			RestrictionID: v.RestrictionID,
			Reason:        v.Reason,
			Severity:      level,
			Source:        domain.SourceInferred,
		})
	}

	for i, alt := range resp.Alternatives {
		if i >= maxAlternatives {
			break
		}
		if alt.Name == "" {
			continue
		}
		judgment.Alternatives = append(judgment.Alternatives, domain.Alternative{
			Name:   alt.Name,
			Reason: alt.Reason,
		})
	}

	return judgment, nil
}

// extractJSON pulls the outermost JSON object out of the raw text, tolerating
// surrounding prose and markdown fences but nothing inside the object itself.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
