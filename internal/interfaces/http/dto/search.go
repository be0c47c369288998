package dto

import (
	"time"

	"sermon-search-api/internal/application/search"
	"sermon-search-api/internal/domain/repository"
)

// SearchRequest is the hybrid search request body.
type SearchRequest struct {
	Query            string   `json:"query" binding:"required"`
	Limit            int      `json:"limit"`
	SemanticWeight   *float64 `json:"semantic_weight"`
	KeywordWeight    *float64 `json:"keyword_weight"`
	RequestedSpeaker string   `json:"requested_speaker"`

	SeriesID   string   `json:"series_id"`
	SermonID   string   `json:"sermon_id"`
	Speaker    string   `json:"speaker"`
	DateFrom   *string  `json:"date_from"`
	DateTo     *string  `json:"date_to"`
	SegmentIDs []string `json:"segment_ids"`
}

// ToSearchRequest maps the body onto an application request, filling
// unset weights from the configured defaults.
func (r *SearchRequest) ToSearchRequest(defaultSemantic, defaultKeyword float64) (*search.Request, error) {
	semantic := defaultSemantic
	if r.SemanticWeight != nil {
		semantic = *r.SemanticWeight
	}
	keyword := defaultKeyword
	if r.KeywordWeight != nil {
		keyword = *r.KeywordWeight
	}

	filter := repository.SegmentFilter{
		SeriesID:   r.SeriesID,
		SermonID:   r.SermonID,
		Speaker:    r.Speaker,
		SegmentIDs: r.SegmentIDs,
	}
	if r.DateFrom != nil {
		t, err := time.Parse("2006-01-02", *r.DateFrom)
		if err != nil {
			return nil, err
		}
		filter.DateFrom = &t
	}
	if r.DateTo != nil {
		t, err := time.Parse("2006-01-02", *r.DateTo)
		if err != nil {
			return nil, err
		}
		filter.DateTo = &t
	}

	return &search.Request{
		Query:            r.Query,
		Filter:           filter,
		Limit:            r.Limit,
		SemanticWeight:   semantic,
		KeywordWeight:    keyword,
		RequestedSpeaker: r.RequestedSpeaker,
	}, nil
}

// SearchResponse is the hybrid search response body.
type SearchResponse struct {
	Query   string           `json:"query"`
	Results []*search.Result `json:"results"`
}

// HierarchicalSearchResponse is the scope-routed search response body.
type HierarchicalSearchResponse struct {
	Query     string              `json:"query"`
	Scope     search.Scope        `json:"scope"`
	Results   []*search.Result    `json:"results"`
	Summaries []search.SummaryRef `json:"summaries,omitempty"`
}
