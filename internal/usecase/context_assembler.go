package usecase

import (
	"fmt"
	"strings"

	"github.com/smarties/backend/internal/domain"
)

// ContextAssembler merges product, profile, rule findings and retrieval
// output into one bounded RAGContext. Pure; no I/O.
type ContextAssembler struct {
	charBudget int
}

// NewContextAssembler creates an assembler with the given character budget.
// The budget is character-based, not token-exact; it only needs to keep the
// reasoning request small and cheap.
func NewContextAssembler(charBudget int) *ContextAssembler {
	if charBudget <= 0 {
		charBudget = 4000
	}
	return &ContextAssembler{charBudget: charBudget}
}

// Assemble builds the RAGContext, trimming least-similar retrieval items
// first when the rendered size exceeds the budget.
func (a *ContextAssembler) Assemble(product *domain.Product, profile *domain.RestrictionProfile, rules *MatchResult, retrieval *domain.RetrievalResult) *domain.RAGContext {
	ragCtx := &domain.RAGContext{
		Product:            product,
		Profile:            profile,
		RuleSummary:        summarizeRules(rules),
		SimilarIngredients: retrieval.SimilarIngredients,
		SimilarProducts:    retrieval.SimilarProducts,
		Guidelines:         retrieval.Guidelines,
		Reduced:            retrieval.Reduced,
	}

	// Lists arrive sorted by similarity descending, so trimming from the
	// tail always drops the least-similar item.
	for RenderSize(ragCtx) > a.charBudget {
		switch {
		case len(ragCtx.SimilarProducts) > 0 && len(ragCtx.SimilarProducts) >= len(ragCtx.SimilarIngredients):
			ragCtx.SimilarProducts = ragCtx.SimilarProducts[:len(ragCtx.SimilarProducts)-1]
		case len(ragCtx.SimilarIngredients) > 0:
			ragCtx.SimilarIngredients = ragCtx.SimilarIngredients[:len(ragCtx.SimilarIngredients)-1]
		case len(ragCtx.Guidelines) > 0:
			ragCtx.Guidelines = ragCtx.Guidelines[:len(ragCtx.Guidelines)-1]
		default:
			return ragCtx // nothing left to trim; product text itself is the floor
		}
	}

	return ragCtx
}

// summarizeRules builds the compact rule summary carried in the prompt.
// The reasoner gets findings, not the full judgment, so it can add detail
// without being invited to re-litigate rule decisions.
func summarizeRules(rules *MatchResult) string {
	if rules == nil || (len(rules.Violations) == 0 && len(rules.Warnings) == 0) {
		return "no rule violations detected"
	}

	var sb strings.Builder
	for i, v := range rules.Violations {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s/%s: %s", v.Category, v.RestrictionID, v.Reason)
	}
	for _, w := range rules.Warnings {
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString("note: ")
		sb.WriteString(w)
	}
	return sb.String()
}

// RenderSize estimates the rendered prompt size of a context in characters.
func RenderSize(ragCtx *domain.RAGContext) int {
	size := len(ragCtx.Product.Name) + len(ragCtx.Product.Brand) + len(ragCtx.RuleSummary)
	for _, ing := range ragCtx.Product.Ingredients {
		size += len(ing) + 2
	}
	for _, si := range ragCtx.SimilarIngredients {
		size += len(si.Name) + len(si.Gloss) + 16
	}
	for _, sp := range ragCtx.SimilarProducts {
		size += len(sp.Code) + len(sp.Name) + 16
	}
	for _, g := range ragCtx.Guidelines {
		size += len(g.Category) + len(g.Text) + 8
	}
	return size
}
