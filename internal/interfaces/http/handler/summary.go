package handler

import (
	"github.com/gin-gonic/gin"

	"sermon-search-api/internal/application/summary"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/interfaces/http/dto"
)

// SummaryHandler manages sermon- and series-level aggregates.
type SummaryHandler struct {
	service   *summary.Service
	summaries repository.SummaryRepository
}

// NewSummaryHandler creates the summary handler.
func NewSummaryHandler(service *summary.Service, summaries repository.SummaryRepository) *SummaryHandler {
	return &SummaryHandler{
		service:   service,
		summaries: summaries,
	}
}

// GetSermonSummary fetches a sermon's stored aggregate.
func (h *SummaryHandler) GetSermonSummary(c *gin.Context) {
	out, err := h.summaries.GetSermonSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	if out == nil {
		dto.NotFound(c, "sermon summary not found")
		return
	}
	dto.Success(c, out)
}

// GenerateSermonSummary rebuilds a sermon's aggregate.
func (h *SummaryHandler) GenerateSermonSummary(c *gin.Context) {
	out, err := h.service.GenerateSermonSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, out)
}

// GetSeriesSummary fetches a series' stored aggregate.
func (h *SummaryHandler) GetSeriesSummary(c *gin.Context) {
	out, err := h.summaries.GetSeriesSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	if out == nil {
		dto.NotFound(c, "series summary not found")
		return
	}
	dto.Success(c, out)
}

// GenerateSeriesSummary rebuilds a series' aggregate, filling missing
// sermon aggregates along the way.
func (h *SummaryHandler) GenerateSeriesSummary(c *gin.Context) {
	out, err := h.service.GenerateSeriesSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, out)
}
