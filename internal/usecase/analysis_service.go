package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

// JudgmentCache is the three-tier cache contract consumed by the analysis
// pipeline. productLastUpdated lets the cache reject entries older than the
// product record.
type JudgmentCache interface {
	Get(ctx context.Context, productCode, fingerprint string, productLastUpdated time.Time) (*domain.ComplianceJudgment, error)
	Put(ctx context.Context, productCode, fingerprint string, judgment *domain.ComplianceJudgment) error
}

// AnalysisConfig holds configuration for the analysis service
type AnalysisConfig struct {
	OverallTimeout time.Duration
}

// AnalysisService is the engine's entry point. It sequences cache lookup,
// concurrent rule matching and retrieval, context assembly, bounded
// reasoning, arbitration, confidence scoring and cache write-back.
type AnalysisService struct {
	store          domain.ProductStore
	matcher        *RestrictionMatcher
	retriever      *RetrievalOrchestrator
	assembler      *ContextAssembler
	reasoner       *ComplianceReasoner
	arbiter        *SafetyArbitrator
	scorer         *ConfidenceScorer
	cache          JudgmentCache
	log            *logger.Logger
	overallTimeout time.Duration
}

// NewAnalysisService creates the analysis service with its dependencies.
func NewAnalysisService(
	store domain.ProductStore,
	matcher *RestrictionMatcher,
	retriever *RetrievalOrchestrator,
	assembler *ContextAssembler,
	reasoner *ComplianceReasoner,
	arbiter *SafetyArbitrator,
	scorer *ConfidenceScorer,
	cache JudgmentCache,
	log *logger.Logger,
	config AnalysisConfig,
) *AnalysisService {
	if config.OverallTimeout <= 0 {
		config.OverallTimeout = 3 * time.Second
	}
	return &AnalysisService{
		store:          store,
		matcher:        matcher,
		retriever:      retriever,
		assembler:      assembler,
		reasoner:       reasoner,
		arbiter:        arbiter,
		scorer:         scorer,
		cache:          cache,
		log:            log,
		overallTimeout: config.OverallTimeout,
	}
}

// Analyze produces a compliance judgment for one product against one
// profile. A missing product or profile is fatal; every enrichment failure
// degrades the result toward higher severity instead of failing.
func (s *AnalysisService) Analyze(ctx context.Context, productCode string, profile *domain.RestrictionProfile) (*domain.ComplianceJudgment, error) {
	if productCode == "" {
		return nil, fmt.Errorf("%w: product code is empty", domain.ErrInvalidRequest)
	}
	if profile == nil {
		return nil, domain.ErrProfileRequired
	}

	log := s.log.With("request_id", uuid.NewString(), "code", productCode, "profile", profile.ID)

	product, err := s.store.GetProduct(ctx, productCode)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productCode)
	}

	fingerprint := profile.Fingerprint()
	if cached, err := s.cache.Get(ctx, productCode, fingerprint, product.LastUpdated); err == nil {
		log.Debug("cache hit")
		return cached, nil
	}

	// The caller may abandon the request mid-flight; the pipeline detaches
	// so the judgment is still computed and cached for the next scan. The
	// overall budget bounds it instead of the caller's lifetime.
	pipelineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.overallTimeout)
	defer cancel()

	start := time.Now()

	// Rule matching and retrieval are independent; run them concurrently.
	var rules *MatchResult
	var retrieval *domain.RetrievalResult
	g, gctx := errgroup.WithContext(pipelineCtx)
	g.Go(func() error {
		rules = s.matcher.Match(product, profile)
		return nil
	})
	g.Go(func() error {
		retrieval = s.retriever.Retrieve(gctx, product, profile)
		return nil
	})
	_ = g.Wait() // neither stage returns an error; retrieval degrades internally

	ragCtx := s.assembler.Assemble(product, profile, rules, retrieval)

	inferred, state := s.reasoner.Infer(pipelineCtx, ragCtx)
	if state != CallSucceeded {
		log.Warn("proceeding without inferred judgment", "state", string(state))
	}

	judgment := s.arbiter.Arbitrate(productCode, profile.ID, rules, inferred, retrieval)

	var reasonerConfidence *float64
	if inferred != nil {
		reasonerConfidence = &inferred.Confidence
	}
	confidence := s.scorer.Score(product, rules, reasonerConfidence, retrieval.Reduced)
	s.scorer.Apply(judgment, confidence)

	if err := s.cache.Put(pipelineCtx, productCode, fingerprint, judgment); err != nil {
		log.Warn("judgment cache write failed", "error", err)
	}

	log.Info("analysis complete",
		"level", string(judgment.SafetyLevel),
		"violations", len(judgment.Violations),
		"confidence", judgment.Confidence,
		"rule_only", judgment.RuleOnly,
		"elapsed", time.Since(start))

	return judgment, nil
}

// AnalyzeAll fans out one independent analysis per profile (family mode) and
// aggregates a household safety level: the max over all profiles, with the
// triggering profiles named.
func (s *AnalysisService) AnalyzeAll(ctx context.Context, productCode string, profiles []*domain.RestrictionProfile) (*domain.HouseholdResult, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles given", domain.ErrInvalidRequest)
	}

	judgments := make([]*domain.ComplianceJudgment, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	for i, profile := range profiles {
		g.Go(func() error {
			judgment, err := s.Analyze(gctx, productCode, profile)
			if err != nil {
				return err
			}
			judgments[i] = judgment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.HouseholdResult{
		PerProfile: make(map[string]*domain.ComplianceJudgment, len(profiles)),
		Household:  domain.SafetySafe,
	}
	for i, profile := range profiles {
		result.PerProfile[profile.ID] = judgments[i]
		result.Household = domain.MaxSafetyLevel(result.Household, judgments[i].SafetyLevel)
	}
	for i, profile := range profiles {
		if judgments[i].SafetyLevel == result.Household && result.Household != domain.SafetySafe {
			name := profile.Name
			if name == "" {
				name = profile.ID
			}
			result.Explanations = append(result.Explanations,
				fmt.Sprintf("%s for %s: %s", result.Household, name, firstExplanation(judgments[i])))
		}
	}

	return result, nil
}

func firstExplanation(judgment *domain.ComplianceJudgment) string {
	if len(judgment.Explanations) > 0 {
		return judgment.Explanations[0]
	}
	return "no specific violation recorded"
}
