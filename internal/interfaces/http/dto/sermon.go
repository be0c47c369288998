package dto

import (
	"time"

	"sermon-search-api/internal/domain/entity"
)

// CreateSeriesRequest is the series creation body.
type CreateSeriesRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Speaker     string `json:"speaker"`
}

// ToEntity builds the series entity.
func (r *CreateSeriesRequest) ToEntity() *entity.Series {
	return &entity.Series{
		Name:        r.Name,
		Description: r.Description,
		Speaker:     r.Speaker,
	}
}

// CreateSermonRequest is the sermon creation body. The transcript is
// optional at creation time and can be uploaded later.
type CreateSermonRequest struct {
	SeriesID    string     `json:"series_id" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Speaker     string     `json:"speaker"`
	FullText    string     `json:"full_text"`
	DurationSec float64    `json:"duration_sec"`
	PublishedAt *time.Time `json:"published_at"`
	ActualDate  *time.Time `json:"actual_date"`
}

// ToEntity builds the sermon entity.
func (r *CreateSermonRequest) ToEntity() *entity.Sermon {
	return &entity.Sermon{
		SeriesID:    r.SeriesID,
		Title:       r.Title,
		Speaker:     r.Speaker,
		FullText:    r.FullText,
		DurationSec: r.DurationSec,
		PublishedAt: r.PublishedAt,
		ActualDate:  r.ActualDate,
	}
}

// UploadTranscriptRequest replaces a sermon's transcript.
type UploadTranscriptRequest struct {
	FullText    string  `json:"full_text" binding:"required"`
	DurationSec float64 `json:"duration_sec"`
}

// IndexRequest triggers the embedding pipeline for a sermon.
type IndexRequest struct {
	Force bool   `json:"force"`
	Mode  string `json:"mode"`
	Async bool   `json:"async"`
}

// IndexAccepted is returned when an indexing job was enqueued.
type IndexAccepted struct {
	SermonID  string `json:"sermon_id"`
	MessageID string `json:"message_id"`
}

// LinkRequest triggers link generation for a segment or a series.
type LinkRequest struct {
	MinSimilarity float64 `json:"min_similarity"`
	MaxLinks      int     `json:"max_links"`
	Regenerate    bool    `json:"regenerate"`
	Async         bool    `json:"async"`
}

// LinkAccepted is returned when a link job was enqueued.
type LinkAccepted struct {
	SegmentID string `json:"segment_id,omitempty"`
	SeriesID  string `json:"series_id,omitempty"`
	MessageID string `json:"message_id"`
}
