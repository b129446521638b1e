package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/report"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/service"
	"github.com/Daniel-Humberto/Micron-Linealytics/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type PlanHandler struct {
	service *service.PlanningService
}

func NewPlanHandler(service *service.PlanningService) *PlanHandler {
	return &PlanHandler{service: service}
}

// CreatePlan plans inline series posted as JSON.
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req service.SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	run, err := h.service.PlanSeries(c.Request.Context(), req)
	if err != nil {
		respondError(c, "failed to create plan", err)
		return
	}

	c.JSON(http.StatusCreated, run)
}

// UploadPlan plans an uploaded CSV file (form field "file").
func (h *PlanHandler) UploadPlan(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided", "details": err.Error()})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file", "details": err.Error()})
		return
	}
	defer file.Close()

	run, err := h.service.PlanReader(c.Request.Context(), header.Filename, file)
	if err != nil {
		respondError(c, "failed to create plan", err)
		return
	}

	c.JSON(http.StatusCreated, run)
}

// ListPlans returns the most recent runs.
func (h *PlanHandler) ListPlans(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit", "details": fmt.Sprintf("%q is not a positive integer", raw)})
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "failed to fetch plans", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetPlan returns one stored run.
func (h *PlanHandler) GetPlan(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "failed to fetch plan", err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// ExportPlan renders a stored run, CSV unless ?format= says otherwise.
func (h *PlanHandler) ExportPlan(c *gin.Context) {
	format, err := report.ParseFormat(c.DefaultQuery("format", string(report.FormatCSV)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format", "details": err.Error()})
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "failed to fetch plan", err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.WriteRun(&buf, run, format); err != nil {
		respondError(c, "failed to export plan", err)
		return
	}

	if run.Synthetic() {
		c.Header("X-Plan-Provenance", string(run.Provenance))
	}
	filename := report.MarkSynthetic(run, run.ID+"."+extension(format))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType(format), buf.Bytes())
}

func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsConfigurationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNoRepository):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logger.Log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func extension(format report.Format) string {
	if format == report.FormatText {
		return "txt"
	}
	return string(format)
}

func contentType(format report.Format) string {
	switch format {
	case report.FormatCSV:
		return "text/csv; charset=utf-8"
	case report.FormatJSON:
		return "application/json; charset=utf-8"
	case report.FormatYAML:
		return "application/yaml; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
