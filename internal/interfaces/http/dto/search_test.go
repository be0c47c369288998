package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSearchRequestDefaultsWeights(t *testing.T) {
	body := SearchRequest{Query: "grace"}

	req, err := body.ToSearchRequest(0.7, 0.3)
	require.NoError(t, err)

	assert.Equal(t, 0.7, req.SemanticWeight)
	assert.Equal(t, 0.3, req.KeywordWeight)
}

func TestToSearchRequestExplicitWeightsWin(t *testing.T) {
	zero := 0.0
	one := 1.0
	body := SearchRequest{Query: "grace", SemanticWeight: &zero, KeywordWeight: &one}

	req, err := body.ToSearchRequest(0.7, 0.3)
	require.NoError(t, err)

	assert.Zero(t, req.SemanticWeight)
	assert.Equal(t, 1.0, req.KeywordWeight)
}

func TestToSearchRequestParsesDateFilters(t *testing.T) {
	from := "2026-01-01"
	to := "2026-06-30"
	body := SearchRequest{
		Query:    "grace",
		SeriesID: "series-1",
		Speaker:  "Ana",
		DateFrom: &from,
		DateTo:   &to,
	}

	req, err := body.ToSearchRequest(0.7, 0.3)
	require.NoError(t, err)

	assert.Equal(t, "series-1", req.Filter.SeriesID)
	assert.Equal(t, "Ana", req.Filter.Speaker)
	require.NotNil(t, req.Filter.DateFrom)
	require.NotNil(t, req.Filter.DateTo)
	assert.Equal(t, 2026, req.Filter.DateFrom.Year())
	assert.Equal(t, 6, int(req.Filter.DateTo.Month()))
}

func TestToSearchRequestRejectsBadDate(t *testing.T) {
	bad := "January 1st"
	body := SearchRequest{Query: "grace", DateFrom: &bad}

	_, err := body.ToSearchRequest(0.7, 0.3)
	require.Error(t, err)
}

func TestNewPageMetaRoundsUp(t *testing.T) {
	meta := NewPageMeta(2, 20, 41)
	assert.Equal(t, 3, meta.TotalPages)

	meta = NewPageMeta(1, 20, 40)
	assert.Equal(t, 2, meta.TotalPages)
}
