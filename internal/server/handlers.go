package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-vidrank/infrastructure/youtube"
	"github.com/ahrav/go-vidrank/internal/application"
	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	URLs []string `json:"urls" binding:"required,min=1,dive,required"`
}

// AnalyzerTestRequest is the body of POST /api/v1/analyzers/:dimension/test.
// A non-empty Transcript is analyzed directly; otherwise URL is fetched.
type AnalyzerTestRequest struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	Transcript      string `json:"transcript"`
	DurationSeconds int    `json:"duration_seconds" binding:"min=0"`
}

// AnalyzerTestResponse carries the analyzer result and, when retries were
// exhausted, the failure that produced the fallback.
type AnalyzerTestResponse struct {
	Item    domain.Item           `json:"item"`
	Result  domain.AnalyzerResult `json:"result"`
	Failure *domain.Failure       `json:"failure,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": s.version})
}

func (s *Server) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "body must contain a non-empty urls array", err.Error())
		return
	}
	if s.maxItems > 0 && len(req.URLs) > s.maxItems {
		writeError(c, http.StatusBadRequest, "too_many_urls", "too many urls in one request",
			gin.H{"max_items": s.maxItems, "received": len(req.URLs)})
		return
	}

	var invalid []string
	for i, u := range req.URLs {
		req.URLs[i] = strings.TrimSpace(u)
		if !youtube.ValidLocator(req.URLs[i]) {
			invalid = append(invalid, u)
		}
	}
	if len(invalid) > 0 {
		writeError(c, http.StatusBadRequest, "invalid_url", "one or more urls are not YouTube video links", invalid)
		return
	}

	runID := s.newRunID()
	report, err := s.ranker.Run(c.Request.Context(), runID, req.URLs)
	if err != nil {
		s.writeRunError(c, runID, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) writeRunError(c *gin.Context, runID string, err error) {
	var insufficient *domain.InsufficientItemsError
	switch {
	case errors.As(err, &insufficient):
		writeError(c, http.StatusBadRequest, "insufficient_items", "not enough videos could be fetched", gin.H{
			"run_id":    runID,
			"required":  insufficient.Required,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, application.ErrTooManyLocators):
		writeError(c, http.StatusBadRequest, "too_many_urls", err.Error(), gin.H{"run_id": runID})
	case errors.Is(err, context.Canceled):
		writeError(c, http.StatusServiceUnavailable, "cancelled", "run cancelled", gin.H{"run_id": runID})
	default:
		s.logger.Error("run failed", "run_id", runID, "err", err)
		writeError(c, http.StatusInternalServerError, "internal_error", "analysis failed", gin.H{"run_id": runID})
	}
}

func (s *Server) getRun(c *gin.Context) {
	if s.runs == nil {
		writeError(c, http.StatusNotFound, "not_found", "run history is not enabled", nil)
		return
	}
	id := c.Param("id")
	rec, err := s.runs.GetRun(c.Request.Context(), id)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", "run not found", gin.H{"run_id": id})
	case err != nil:
		s.logger.Error("get run failed", "run_id", id, "err", err)
		writeError(c, http.StatusInternalServerError, "internal_error", "could not load run", nil)
	default:
		c.JSON(http.StatusOK, rec)
	}
}

func (s *Server) testAnalyzer(c *gin.Context) {
	dim, err := domain.ParseDimension(c.Param("dimension"))
	if err != nil || dim == domain.DimensionOriginality {
		writeError(c, http.StatusBadRequest, "unknown_dimension",
			"dimension must be one of density, redundancy, title_relevance", c.Param("dimension"))
		return
	}

	var req AnalyzerTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "malformed request body", err.Error())
		return
	}

	var item domain.Item
	switch {
	case strings.TrimSpace(req.Transcript) != "":
		item = domain.NewItem("adhoc", req.Title, req.DurationSeconds, req.Transcript)
	case youtube.ValidLocator(req.URL):
		fetched, err := s.ranker.Fetch(c.Request.Context(), req.URL)
		if err != nil {
			writeError(c, http.StatusBadGateway, "fetch_failed", "could not fetch video", err.Error())
			return
		}
		item = *fetched
	default:
		writeError(c, http.StatusBadRequest, "invalid_request", "provide a transcript or a YouTube url", nil)
		return
	}

	result, failure, err := s.ranker.AnalyzeOne(c.Request.Context(), dim, item)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownDimension) {
			writeError(c, http.StatusBadRequest, "unknown_dimension", err.Error(), nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "internal_error", "analysis failed", nil)
		return
	}
	c.JSON(http.StatusOK, AnalyzerTestResponse{Item: item, Result: result, Failure: failure})
}
