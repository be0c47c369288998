package handler

import (
	"github.com/gin-gonic/gin"

	"sermon-search-api/internal/infrastructure/llm"
	"sermon-search-api/internal/interfaces/http/dto"
)

// UsageHandler exposes the generation client's usage accounting.
type UsageHandler struct {
	client *llm.Client
}

// NewUsageHandler creates the usage handler.
func NewUsageHandler(client *llm.Client) *UsageHandler {
	return &UsageHandler{client: client}
}

// Snapshot returns per-backend token usage since the last reset.
func (h *UsageHandler) Snapshot(c *gin.Context) {
	dto.Success(c, h.client.Usage())
}

// Reset zeroes the in-memory usage counters.
func (h *UsageHandler) Reset(c *gin.Context) {
	h.client.ResetUsage()
	dto.NoContent(c)
}
