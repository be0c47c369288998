package handler

import (
	"github.com/gin-gonic/gin"

	"sermon-search-api/internal/application/linking"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/infrastructure/messaging"
	"sermon-search-api/internal/interfaces/http/dto"
)

// LinkHandler manages cross-sermon segment links.
type LinkHandler struct {
	linker   *linking.Linker
	segments repository.SegmentRepository
	producer *messaging.Producer
}

// NewLinkHandler creates the link handler.
func NewLinkHandler(linker *linking.Linker, segments repository.SegmentRepository, producer *messaging.Producer) *LinkHandler {
	return &LinkHandler{
		linker:   linker,
		segments: segments,
		producer: producer,
	}
}

// GetLinks lists a segment's outgoing links.
func (h *LinkHandler) GetLinks(c *gin.Context) {
	links, err := h.linker.GetLinks(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, links)
}

// GenerateLinks runs or enqueues link discovery for one segment.
func (h *LinkHandler) GenerateLinks(c *gin.Context) {
	var body dto.LinkRequest
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		dto.BadRequest(c, err.Error())
		return
	}

	segmentID := c.Param("id")

	if body.Async {
		segment, err := h.segments.GetByID(c.Request.Context(), segmentID)
		if err != nil {
			dto.AppError(c, err)
			return
		}
		if segment == nil {
			dto.NotFound(c, "segment not found")
			return
		}
		msgID, err := h.producer.PublishLinkJob(c.Request.Context(), &messaging.LinkJobMessage{
			SegmentID:     segmentID,
			SermonID:      segment.SermonID,
			SeriesID:      segment.SeriesID,
			MinSimilarity: body.MinSimilarity,
			MaxLinks:      body.MaxLinks,
		})
		if err != nil {
			dto.AppError(c, err)
			return
		}
		dto.Accepted(c, dto.LinkAccepted{SegmentID: segmentID, MessageID: msgID})
		return
	}

	if body.Regenerate {
		created, err := h.linker.RegenerateLinks(c.Request.Context(), segmentID, body.MinSimilarity, body.MaxLinks)
		if err != nil {
			dto.AppError(c, err)
			return
		}
		dto.Success(c, created)
		return
	}

	created, err := h.linker.GenerateLinks(c.Request.Context(), segmentID, body.MinSimilarity, body.MaxLinks)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, created)
}

// GenerateSeriesLinks runs or enqueues link discovery for every
// segment of a series.
func (h *LinkHandler) GenerateSeriesLinks(c *gin.Context) {
	var body dto.LinkRequest
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		dto.BadRequest(c, err.Error())
		return
	}

	seriesID := c.Param("id")

	if body.Async {
		msgID, err := h.producer.PublishSeriesLinkJob(c.Request.Context(), &messaging.SeriesLinkJobMessage{
			SeriesID:      seriesID,
			MinSimilarity: body.MinSimilarity,
			MaxLinks:      body.MaxLinks,
		})
		if err != nil {
			dto.AppError(c, err)
			return
		}
		dto.Accepted(c, dto.LinkAccepted{SeriesID: seriesID, MessageID: msgID})
		return
	}

	result, err := h.linker.GenerateForSeries(c.Request.Context(), seriesID, body.MinSimilarity, body.MaxLinks)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, result)
}
