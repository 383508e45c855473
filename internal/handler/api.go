package handler

import (
	"errors"
	"net/http"
	"path/filepath"

	"companion-safety/internal/analysis"
	"companion-safety/internal/classification"
	"companion-safety/internal/findings"
	"companion-safety/internal/models"
	"companion-safety/internal/repository"
	"companion-safety/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunStore is the read side of the run archive
type RunStore interface {
	ListRuns() ([]*models.Run, error)
	GetRun(runID string) (*models.Run, error)
	GetRunResults(runID string) ([]models.EvaluationResult, error)
}

// Sources locates the files the analysis endpoints read
type Sources struct {
	ResultsDir          string
	ClassificationsPath string
}

// Handler handles HTTP requests
type Handler struct {
	runs     RunStore
	sources  Sources
	detector *findings.Detector
	logger   *zap.Logger
}

// NewHandler creates a new API handler. runs may be nil when the archive is disabled.
func NewHandler(runs RunStore, sources Sources, logger *zap.Logger) *Handler {
	return &Handler{
		runs:     runs,
		sources:  sources,
		detector: findings.DefaultDetector(),
		logger:   logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Run archive
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
		api.GET("/runs/:id/results", h.GetRunResults)

		// Aggregates
		api.GET("/analysis/categories", h.GetCategories)
		api.GET("/analysis/models", h.GetModels)
		api.GET("/analysis/fairness", h.GetFairness)
		api.GET("/analysis/findings", h.GetFindings)

		// Export
		api.GET("/export/csv", h.ExportCSV)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

func (h *Handler) archiveAvailable(c *gin.Context) bool {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive is disabled"})
		return false
	}
	return true
}

// ListRuns returns all archived runs
func (h *Handler) ListRuns(c *gin.Context) {
	if !h.archiveAvailable(c) {
		return
	}

	runs, err := h.runs.ListRuns()
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetRun returns one archived run
func (h *Handler) GetRun(c *gin.Context) {
	if !h.archiveAvailable(c) {
		return
	}

	run, err := h.runs.GetRun(c.Param("id"))
	if errors.Is(err, repository.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetRunResults returns the results of one archived run
func (h *Handler) GetRunResults(c *gin.Context) {
	if !h.archiveAvailable(c) {
		return
	}

	results, err := h.runs.GetRunResults(c.Param("id"))
	if errors.Is(err, repository.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run results"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}

// loadResults picks the batch to analyze: ?run_id= from the archive,
// ?results= as a file name inside the results directory, or the latest file.
func (h *Handler) loadResults(c *gin.Context) ([]models.EvaluationResult, bool) {
	if runID := c.Query("run_id"); runID != "" {
		if !h.archiveAvailable(c) {
			return nil, false
		}
		results, err := h.runs.GetRunResults(runID)
		if errors.Is(err, repository.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return nil, false
		}
		if err != nil {
			h.logger.Error("Failed to get run results", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
			return nil, false
		}
		return results, true
	}

	explicit := ""
	if name := c.Query("results"); name != "" {
		explicit = filepath.Join(h.sources.ResultsDir, filepath.Base(name))
	}

	path, err := store.ResolveResults(explicit, h.sources.ResultsDir)
	if errors.Is(err, store.ErrNoResults) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no results files found"})
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to resolve results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
		return nil, false
	}

	results, err := store.LoadResults(path)
	if err != nil {
		h.logger.Warn("Failed to load results", zap.String("path", path), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "results file could not be read"})
		return nil, false
	}
	return results, true
}

func (h *Handler) loadClassifications(c *gin.Context) (*classification.Set, bool) {
	set, err := classification.Load(h.sources.ClassificationsPath, h.logger)
	if err != nil {
		h.logger.Error("Failed to load classifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load classifications"})
		return nil, false
	}
	return set, true
}

func (h *Handler) loadAnalyzer(c *gin.Context) (*analysis.Analyzer, bool) {
	results, ok := h.loadResults(c)
	if !ok {
		return nil, false
	}
	set, ok := h.loadClassifications(c)
	if !ok {
		return nil, false
	}
	return analysis.NewAnalyzer(results, set), true
}

// GetCategories returns per-category verdict counts
func (h *Handler) GetCategories(c *gin.Context) {
	a, ok := h.loadAnalyzer(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_tests":      a.TotalTests(),
		"classified_count": a.ClassifiedCount(),
		"categories":       a.ByCategory(),
		"classified":       a.ClassifiedByCategory(),
	})
}

// GetModels returns per-model verdict counts
func (h *Handler) GetModels(c *gin.Context) {
	a, ok := h.loadAnalyzer(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_tests":      a.TotalTests(),
		"classified_count": a.ClassifiedCount(),
		"models":           a.ByModel(),
		"classified":       a.ClassifiedByModel(),
	})
}

// GetFairness returns scenarios whose demographic variants were rated differently
func (h *Handler) GetFairness(c *gin.Context) {
	a, ok := h.loadAnalyzer(c)
	if !ok {
		return
	}

	disparities := a.Fairness()
	if disparities == nil {
		disparities = []analysis.Disparity{}
	}
	perModel := a.ModelFairness()
	if perModel == nil {
		perModel = []analysis.Disparity{}
	}
	c.JSON(http.StatusOK, gin.H{
		"disparities": disparities,
		"total":       len(disparities),
		"per_model":   perModel,
	})
}

// GetFindings returns the AI self-identification report over the classification table
func (h *Handler) GetFindings(c *gin.Context) {
	set, ok := h.loadClassifications(c)
	if !ok {
		return
	}

	report := findings.Analyze(set.AllRows(), h.detector)
	c.JSON(http.StatusOK, gin.H{
		"report":         report,
		"interpretation": report.Interpretation(),
	})
}

// ExportCSV streams the category/model summary CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	a, ok := h.loadAnalyzer(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=analysis_summary.csv")

	if err := analysis.ExportSummary(c.Writer, a.ByCategory(), a.ByModel()); err != nil {
		h.logger.Error("Failed to export CSV", zap.Error(err))
	}
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "safetyeval",
		"version": "1.0.0",
	})
}
