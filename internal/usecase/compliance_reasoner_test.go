package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

type fakeReasoningClient struct {
	response string
	err      error
	delay    time.Duration
}

func (f *fakeReasoningClient) Complete(ctx context.Context, prompt string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func testRAGContext() *domain.RAGContext {
	return &domain.RAGContext{
		Product:     milkChocolateProduct(),
		Profile:     severeMilkProfile(),
		RuleSummary: "allergy/milk: contains milk",
	}
}

func TestBuildPrompt(t *testing.T) {
	ragCtx := testRAGContext()
	ragCtx.SimilarIngredients = []domain.SimilarIngredient{{Name: "cream", Score: 0.91, Gloss: "dairy fat"}}
	ragCtx.Guidelines = []domain.GuidelineSnippet{{Category: "milk", Text: "casein is a milk protein"}}

	prompt := BuildPrompt(ragCtx)

	for _, want := range []string{
		"Milk Chocolate Bar",
		"milk, sugar, cocoa",
		"allergy: milk (severe)",
		"allergy/milk: contains milk",
		"cream (similarity 0.91)",
		"casein is a milk protein",
		`"safetyLevel"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestParseReasonerResponse(t *testing.T) {
	ragCtx := testRAGContext()

	t.Run("accepts well-formed response", func(t *testing.T) {
		raw := `{"safetyLevel": "danger", "violations": [{"restrictionId": "milk", "reason": "contains dairy"}], "confidence": 92, "alternatives": [{"name": "Dark Chocolate 85%", "reason": "dairy-free"}]}`
		judgment, err := ParseReasonerResponse(raw, ragCtx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if judgment.SafetyLevel != domain.SafetyDanger {
			t.Errorf("SafetyLevel = %s, want danger", judgment.SafetyLevel)
		}
		if judgment.Confidence != 92 {
			t.Errorf("Confidence = %g, want 92", judgment.Confidence)
		}
		if len(judgment.Violations) != 1 || judgment.Violations[0].Source != domain.SourceInferred {
			t.Errorf("violations = %+v, want one inferred violation", judgment.Violations)
		}
		if len(judgment.Alternatives) != 1 {
			t.Errorf("alternatives = %d, want 1", len(judgment.Alternatives))
		}
	})

	t.Run("accepts fenced JSON", func(t *testing.T) {
		raw := "```json\n{\"safetyLevel\": \"safe\", \"violations\": [], \"confidence\": 75, \"alternatives\": []}\n```"
		judgment, err := ParseReasonerResponse(raw, ragCtx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if judgment.SafetyLevel != domain.SafetySafe {
			t.Errorf("SafetyLevel = %s, want safe", judgment.SafetyLevel)
		}
	})

	t.Run("truncates alternatives beyond the cap", func(t *testing.T) {
		raw := `{"safetyLevel": "safe", "violations": [], "confidence": 80, "alternatives": [{"name": "a"}, {"name": "b"}, {"name": "c"}]}`
		judgment, err := ParseReasonerResponse(raw, ragCtx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(judgment.Alternatives) != maxAlternatives {
			t.Errorf("alternatives = %d, want %d", len(judgment.Alternatives), maxAlternatives)
		}
	})

	rejections := []struct {
		name string
		raw  string
	}{
		{"no JSON at all", "I think this product is probably fine."},
		{"malformed JSON", `{"safetyLevel": "safe", "confidence":`},
		{"missing safety level", `{"violations": [], "confidence": 80}`},
		{"unknown safety level", `{"safetyLevel": "mostly-fine", "confidence": 80}`},
		{"missing confidence", `{"safetyLevel": "safe", "violations": []}`},
		{"confidence above range", `{"safetyLevel": "safe", "confidence": 140}`},
		{"confidence below range", `{"safetyLevel": "safe", "confidence": -5}`},
		{"violation without reason", `{"safetyLevel": "danger", "violations": [{"restrictionId": "milk"}], "confidence": 80}`},
	}
	for _, tt := range rejections {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := ParseReasonerResponse(tt.raw, ragCtx)
			if !errors.Is(err, domain.ErrReasoningParse) {
				t.Errorf("error = %v, want ErrReasoningParse", err)
			}
		})
	}
}

func TestInfer_TerminalStates(t *testing.T) {
	ragCtx := testRAGContext()

	t.Run("succeeded", func(t *testing.T) {
		client := &fakeReasoningClient{response: `{"safetyLevel": "caution", "violations": [], "confidence": 70}`}
		reasoner := NewComplianceReasoner(client, logger.NewNop(), time.Second)
		judgment, state := reasoner.Infer(context.Background(), ragCtx)
		if state != CallSucceeded {
			t.Fatalf("state = %s, want succeeded", state)
		}
		if judgment == nil || judgment.SafetyLevel != domain.SafetyCaution {
			t.Errorf("judgment = %+v, want caution", judgment)
		}
	})

	t.Run("timed out", func(t *testing.T) {
		client := &fakeReasoningClient{delay: 200 * time.Millisecond, response: `{}`}
		reasoner := NewComplianceReasoner(client, logger.NewNop(), 20*time.Millisecond)
		judgment, state := reasoner.Infer(context.Background(), ragCtx)
		if state != CallTimedOut {
			t.Errorf("state = %s, want timed_out", state)
		}
		if judgment != nil {
			t.Errorf("judgment must be nil on timeout")
		}
	})

	t.Run("service unavailable", func(t *testing.T) {
		client := &fakeReasoningClient{err: errors.New("502 bad gateway")}
		reasoner := NewComplianceReasoner(client, logger.NewNop(), time.Second)
		judgment, state := reasoner.Infer(context.Background(), ragCtx)
		if state != CallServiceUnavailable {
			t.Errorf("state = %s, want service_unavailable", state)
		}
		if judgment != nil {
			t.Errorf("judgment must be nil on service failure")
		}
	})

	t.Run("parse failed", func(t *testing.T) {
		client := &fakeReasoningClient{response: "the product looks safe to me"}
		reasoner := NewComplianceReasoner(client, logger.NewNop(), time.Second)
		judgment, state := reasoner.Infer(context.Background(), ragCtx)
		if state != CallParseFailed {
			t.Errorf("state = %s, want parse_failed", state)
		}
		if judgment != nil {
			t.Errorf("judgment must be nil on parse failure")
		}
	})
}
