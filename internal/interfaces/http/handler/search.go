package handler

import (
	"github.com/gin-gonic/gin"

	"sermon-search-api/internal/application/search"
	"sermon-search-api/internal/config"
	"sermon-search-api/internal/interfaces/http/dto"
)

// SearchHandler serves hybrid and hierarchical retrieval.
type SearchHandler struct {
	engine *search.Engine
	router *search.Router
	cfg    config.SearchConfig
}

// NewSearchHandler creates the search handler.
func NewSearchHandler(engine *search.Engine, router *search.Router, cfg config.SearchConfig) *SearchHandler {
	return &SearchHandler{
		engine: engine,
		router: router,
		cfg:    cfg,
	}
}

// Search runs a hybrid semantic+keyword search over segments.
func (h *SearchHandler) Search(c *gin.Context) {
	var body dto.SearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	req, err := body.ToSearchRequest(h.cfg.SemanticWeight, h.cfg.KeywordWeight)
	if err != nil {
		dto.BadRequest(c, "invalid date filter: "+err.Error())
		return
	}

	results, err := h.engine.Search(c.Request.Context(), req)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Success(c, dto.SearchResponse{
		Query:   body.Query,
		Results: results,
	})
}

// SearchHierarchical routes the query to the segment, sermon, or
// series level before searching.
func (h *SearchHandler) SearchHierarchical(c *gin.Context) {
	var body dto.SearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	req, err := body.ToSearchRequest(h.cfg.SemanticWeight, h.cfg.KeywordWeight)
	if err != nil {
		dto.BadRequest(c, "invalid date filter: "+err.Error())
		return
	}

	result, err := h.router.SearchWithHierarchy(c.Request.Context(), req)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Success(c, dto.HierarchicalSearchResponse{
		Query:     body.Query,
		Scope:     result.Scope,
		Results:   result.Results,
		Summaries: result.Summaries,
	})
}
