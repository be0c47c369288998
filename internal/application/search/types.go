// Package search implements hybrid retrieval: concurrent semantic and
// keyword sub-searches fused by reciprocal rank, plus the scope router
// that dispatches queries to the segment, sermon, or series level.
package search

import (
	"time"

	"sermon-search-api/internal/domain/repository"
)

// Request is one retrieval request.
type Request struct {
	Query            string                   `json:"query"`
	Filter           repository.SegmentFilter `json:"filter"`
	Limit            int                      `json:"limit"`
	SemanticWeight   float64                  `json:"semantic_weight"`
	KeywordWeight    float64                  `json:"keyword_weight"`
	RequestedSpeaker string                   `json:"requested_speaker,omitempty"`
}

// ScoreBreakdown explains how a result's final score was assembled.
// Emitted on every result so ranking stays debuggable in production.
type ScoreBreakdown struct {
	SemanticScore     float64 `json:"semantic_score"`
	KeywordScore      float64 `json:"keyword_score"`
	SemanticRankScore float64 `json:"semantic_rank_score"`
	KeywordRankScore  float64 `json:"keyword_rank_score"`
	Fused             float64 `json:"fused"`
	Factors           Factors `json:"factors"`
}

// Result is one ranked segment. Ephemeral, never persisted.
type Result struct {
	SegmentID    string         `json:"segment_id"`
	SermonID     string         `json:"sermon_id"`
	SeriesID     string         `json:"series_id"`
	Speaker      string         `json:"speaker,omitempty"`
	SermonDate   *time.Time     `json:"sermon_date,omitempty"`
	Text         string         `json:"text"`
	StartWord    int            `json:"start_word"`
	EndWord      int            `json:"end_word"`
	StartTimeSec float64        `json:"start_time_sec"`
	EndTimeSec   float64        `json:"end_time_sec"`
	Score        float64        `json:"score"`
	Breakdown    ScoreBreakdown `json:"score_breakdown"`
}

// Scope is the granularity a query targets.
type Scope string

const (
	ScopeSegment Scope = "segment"
	ScopeSermon  Scope = "sermon"
	ScopeSeries  Scope = "series"
)

// SummaryRef is an aggregate-level match surfaced by hierarchical search.
type SummaryRef struct {
	ID       string  `json:"id"`
	SermonID string  `json:"sermon_id,omitempty"`
	SeriesID string  `json:"series_id,omitempty"`
	Level    string  `json:"level"`
	Summary  string  `json:"summary"`
	Score    float64 `json:"score"`
}

// HierarchicalResult is the scope-routed search response.
type HierarchicalResult struct {
	Scope     Scope        `json:"scope"`
	Results   []*Result    `json:"results"`
	Summaries []SummaryRef `json:"summaries,omitempty"`
}
