package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

// AnalysisService is the analysis entry point the handlers call.
type AnalysisService interface {
	Analyze(ctx context.Context, productCode string, profile *domain.RestrictionProfile) (*domain.ComplianceJudgment, error)
	AnalyzeAll(ctx context.Context, productCode string, profiles []*domain.RestrictionProfile) (*domain.HouseholdResult, error)
}

// CacheInvalidator drops cached judgments for a product across all tiers.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, productCode string) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analysis AnalysisService
	cache    CacheInvalidator
	log      *logger.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(analysis AnalysisService, cache CacheInvalidator, log *logger.Logger) *Handler {
	return &Handler{analysis: analysis, cache: cache, log: log}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "smarties-backend",
		"version": "1.0.0",
	})
}

// AnalyzeRequest is the body for single-profile analysis.
type AnalyzeRequest struct {
	ProductCode string                     `json:"productCode" binding:"required"`
	Profile     *domain.RestrictionProfile `json:"profile" binding:"required"`
}

// Analyze runs one product against one restriction profile
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	judgment, err := h.analysis.Analyze(c.Request.Context(), req.ProductCode, req.Profile)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, judgment)
}

// FamilyRequest is the body for household analysis.
type FamilyRequest struct {
	ProductCode string                       `json:"productCode" binding:"required"`
	Profiles    []*domain.RestrictionProfile `json:"profiles" binding:"required"`
}

// AnalyzeFamily runs one product against every profile in a household
func (h *Handler) AnalyzeFamily(c *gin.Context) {
	var req FamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.analysis.AnalyzeAll(c.Request.Context(), req.ProductCode, req.Profiles)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// InvalidateCache drops cached judgments for a product after its data was
// corrected upstream
func (h *Handler) InvalidateCache(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product code is required"})
		return
	}

	if err := h.cache.Invalidate(c.Request.Context(), code); err != nil {
		h.log.Error("cache invalidation failed", "code", code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache invalidation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invalidated": code})
}

// respondError maps domain errors to HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrProfileRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("analysis request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
