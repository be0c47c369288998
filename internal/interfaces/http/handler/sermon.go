package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sermon-search-api/internal/application/indexing"
	"sermon-search-api/internal/application/segmenter"
	"sermon-search-api/internal/domain/repository"
	"sermon-search-api/internal/infrastructure/messaging"
	"sermon-search-api/internal/interfaces/http/dto"
)

// SermonHandler manages series, sermons, and their transcripts.
type SermonHandler struct {
	series   repository.SeriesRepository
	sermons  repository.SermonRepository
	pipeline *indexing.Pipeline
	producer *messaging.Producer
}

// NewSermonHandler creates the sermon handler.
func NewSermonHandler(
	series repository.SeriesRepository,
	sermons repository.SermonRepository,
	pipeline *indexing.Pipeline,
	producer *messaging.Producer,
) *SermonHandler {
	return &SermonHandler{
		series:   series,
		sermons:  sermons,
		pipeline: pipeline,
		producer: producer,
	}
}

// CreateSeries registers a sermon series.
func (h *SermonHandler) CreateSeries(c *gin.Context) {
	var body dto.CreateSeriesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	series := body.ToEntity()
	series.ID = uuid.NewString()
	if err := h.series.Create(c.Request.Context(), series); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Created(c, series)
}

// ListSeries pages through all series.
func (h *SermonHandler) ListSeries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.series.List(c.Request.Context(), repository.NewPagination(page, pageSize))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.SuccessWithPage(c, result.Items,
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// GetSeries fetches one series.
func (h *SermonHandler) GetSeries(c *gin.Context) {
	series, err := h.series.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	if series == nil {
		dto.NotFound(c, "series not found")
		return
	}
	dto.Success(c, series)
}

// CreateSermon registers a sermon, optionally with its transcript.
func (h *SermonHandler) CreateSermon(c *gin.Context) {
	var body dto.CreateSermonRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	sermon := body.ToEntity()
	sermon.ID = uuid.NewString()
	if err := h.sermons.Create(c.Request.Context(), sermon); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Created(c, sermon)
}

// GetSermon fetches one sermon.
func (h *SermonHandler) GetSermon(c *gin.Context) {
	sermon, err := h.sermons.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	if sermon == nil {
		dto.NotFound(c, "sermon not found")
		return
	}
	dto.Success(c, sermon)
}

// ListSermons pages through a series' sermons.
func (h *SermonHandler) ListSermons(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var filter *repository.SermonFilter
	if speaker := c.Query("speaker"); speaker != "" {
		filter = &repository.SermonFilter{Speaker: speaker}
	}

	result, err := h.sermons.ListBySeries(c.Request.Context(), c.Param("id"),
		filter, repository.NewPagination(page, pageSize))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.SuccessWithPage(c, result.Items,
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// UploadTranscript replaces a sermon's transcript and reindexes it.
// Unchanged text short-circuits to a cache hit inside the pipeline.
func (h *SermonHandler) UploadTranscript(c *gin.Context) {
	var body dto.UploadTranscriptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.pipeline.Touch(c.Request.Context(), c.Param("id"), body.FullText, body.DurationSec)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, result)
}

// Index runs or enqueues the embedding pipeline for a sermon.
func (h *SermonHandler) Index(c *gin.Context) {
	var body dto.IndexRequest
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		dto.BadRequest(c, err.Error())
		return
	}

	mode := segmenter.Mode(body.Mode)
	switch mode {
	case segmenter.ModeNone, segmenter.ModeMinimal, segmenter.ModeLegacy, "":
	default:
		dto.BadRequest(c, "unknown segmentation mode: "+body.Mode)
		return
	}

	sermonID := c.Param("id")

	if body.Async {
		sermon, err := h.sermons.GetByID(c.Request.Context(), sermonID)
		if err != nil {
			dto.AppError(c, err)
			return
		}
		if sermon == nil {
			dto.NotFound(c, "sermon not found")
			return
		}
		msgID, err := h.producer.PublishIndexJob(c.Request.Context(), &messaging.IndexJobMessage{
			SermonID: sermonID,
			SeriesID: sermon.SeriesID,
			Force:    body.Force,
		})
		if err != nil {
			dto.AppError(c, err)
			return
		}
		dto.Accepted(c, dto.IndexAccepted{SermonID: sermonID, MessageID: msgID})
		return
	}

	result, err := h.pipeline.GenerateEmbeddings(c.Request.Context(), sermonID, body.Force, mode)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, result)
}
