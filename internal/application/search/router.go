package search

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sermon-search-api/internal/domain/scripture"
	"sermon-search-api/internal/infrastructure/persistence/milvus"
	apperrors "sermon-search-api/pkg/errors"
	"sermon-search-api/pkg/logger"
	"sermon-search-api/pkg/metrics"
)

// sermonBoost rewards a segment whose parent sermon also matched at the
// aggregate level. Capped so boosted scores stay comparable.
const (
	sermonBoost    = 1.2
	sermonBoostCap = 1.0
)

// ScopeMarkers is the language-specific phrase set the router matches
// against. The vocabulary is pluggable; the priority order is not.
type ScopeMarkers struct {
	Series      []string
	Sermon      []string
	FineGrained []string
}

// DefaultMarkers returns the marker set for a language tag. Unknown
// languages get the English set.
func DefaultMarkers(language string) ScopeMarkers {
	switch strings.ToLower(language) {
	case "pt-br", "pt":
		return ScopeMarkers{
			Series: []string{
				"estilo geral", "de modo geral", "no geral", "esse pregador costuma",
				"em todas as pregações", "na série toda", "visão geral",
			},
			Sermon: []string{
				"pregações sobre", "mensagens sobre", "sermões sobre",
				"qual pregação", "qual mensagem", "qual sermão",
			},
			FineGrained: []string{
				"em que momento", "em qual momento", "especificamente",
				"trecho exato", "onde ele diz", "minuto",
			},
		}
	default:
		return ScopeMarkers{
			Series: []string{
				"overall style", "in general", "generally", "this speaker generally",
				"across all sermons", "whole series", "overview of",
			},
			Sermon: []string{
				"sermons about", "messages about", "which sermon",
				"which message", "talks about", "sermon on",
			},
			FineGrained: []string{
				"at what point", "specific", "exactly where", "exact moment",
				"where does he say", "minute",
			},
		}
	}
}

// SummarySearcher is the aggregate-level retrieval interface.
type SummarySearcher interface {
	SearchSummaries(ctx context.Context, params *milvus.SummarySearchParams) ([]*milvus.SummaryResult, error)
}

// Router classifies query scope and dispatches to the matching
// retrieval level. Classification is deterministic: same query, same
// rules, same scope.
type Router struct {
	engine    *Engine
	summaries SummarySearcher
	embedder  QueryEmbedder
	refs      *scripture.Ruleset
	markers   ScopeMarkers
}

// NewRouter assembles the router.
func NewRouter(
	engine *Engine,
	summaries SummarySearcher,
	embedder QueryEmbedder,
	refs *scripture.Ruleset,
	markers ScopeMarkers,
) *Router {
	return &Router{
		engine:    engine,
		summaries: summaries,
		embedder:  embedder,
		refs:      refs,
		markers:   markers,
	}
}

// DetectScope classifies a query. Priority, first match wins: scripture
// citation, series markers, sermon markers, fine-grained markers, then
// the segment default (most specific, least risk of over-aggregation).
func (r *Router) DetectScope(query string) Scope {
	if r.refs != nil && r.refs.HasReference(query) {
		return ScopeSegment
	}

	lowered := strings.ToLower(query)
	if containsAny(lowered, r.markers.Series) {
		return ScopeSeries
	}
	if containsAny(lowered, r.markers.Sermon) {
		return ScopeSermon
	}
	if containsAny(lowered, r.markers.FineGrained) {
		return ScopeSegment
	}
	return ScopeSegment
}

// SearchWithHierarchy routes a request by detected scope.
func (r *Router) SearchWithHierarchy(ctx context.Context, req *Request) (*HierarchicalResult, error) {
	ctx, span := tracer.Start(ctx, "search.SearchWithHierarchy",
		trace.WithAttributes(attribute.Int("limit", req.Limit)))
	defer span.End()

	scope := r.DetectScope(req.Query)
	span.SetAttributes(attribute.String("scope", string(scope)))
	metrics.QueryScopeTotal.WithLabelValues(string(scope)).Inc()

	switch scope {
	case ScopeSegment:
		results, err := r.engine.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		return &HierarchicalResult{Scope: scope, Results: results}, nil
	case ScopeSermon:
		return r.searchSermonLevel(ctx, req, scope, nil)
	case ScopeSeries:
		return r.searchSeriesLevel(ctx, req)
	default:
		return nil, apperrors.New(apperrors.CodeInvalidParam, "invalid query scope")
	}
}

// searchSermonLevel matches the query against sermon-level aggregates,
// then surfaces the best segment per top sermon with a boosted score.
func (r *Router) searchSermonLevel(ctx context.Context, req *Request, scope Scope, extra []SummaryRef) (*HierarchicalResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = r.engine.cfg.DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	matches, err := r.summaries.SearchSummaries(ctx, &milvus.SummarySearchParams{
		QueryVector: vector,
		TopK:        limit,
		Level:       milvus.SummaryLevelSermon,
		SeriesID:    req.Filter.SeriesID,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSearchFailed, "sermon-level search failed")
	}
	if len(matches) == 0 {
		// Nothing aggregated yet; segment search still answers the query.
		results, err := r.engine.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		return &HierarchicalResult{Scope: scope, Results: results, Summaries: extra}, nil
	}

	summaries := extra
	var results []*Result
	for _, m := range matches {
		summaries = append(summaries, SummaryRef{
			ID:       m.ID,
			SermonID: m.SermonID,
			SeriesID: m.SeriesID,
			Level:    m.Level,
			Summary:  m.Summary,
			Score:    float64(m.Score),
		})

		best, err := r.bestSegment(ctx, req, m.SermonID)
		if err != nil {
			logger.Warn(ctx, "failed to fetch best segment for sermon",
				"sermon_id", m.SermonID, "error", err.Error())
			continue
		}
		if best == nil {
			continue
		}

		boosted := best.Score * sermonBoost
		if boosted > sermonBoostCap {
			boosted = sermonBoostCap
		}
		best.Score = boosted
		results = append(results, best)
	}

	return &HierarchicalResult{Scope: scope, Results: results, Summaries: summaries}, nil
}

// searchSeriesLevel surfaces series aggregates alongside sermon-level
// results, falling back to the sermon path when no aggregate exists.
func (r *Router) searchSeriesLevel(ctx context.Context, req *Request) (*HierarchicalResult, error) {
	vector, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.engine.cfg.DefaultTopK
	}

	matches, err := r.summaries.SearchSummaries(ctx, &milvus.SummarySearchParams{
		QueryVector: vector,
		TopK:        limit,
		Level:       milvus.SummaryLevelSeries,
		SeriesID:    req.Filter.SeriesID,
	})
	if err != nil {
		logger.Warn(ctx, "series-level search failed, falling back to sermon level", "error", err.Error())
		matches = nil
	}

	var seriesRefs []SummaryRef
	for _, m := range matches {
		seriesRefs = append(seriesRefs, SummaryRef{
			ID:       m.ID,
			SeriesID: m.SeriesID,
			Level:    m.Level,
			Summary:  m.Summary,
			Score:    float64(m.Score),
		})
	}

	return r.searchSermonLevel(ctx, req, ScopeSeries, seriesRefs)
}

// bestSegment runs a segment search restricted to one sermon and
// returns the single top result.
func (r *Router) bestSegment(ctx context.Context, req *Request, sermonID string) (*Result, error) {
	scoped := *req
	scoped.Filter.SermonID = sermonID
	scoped.Limit = 1

	results, err := r.engine.Search(ctx, &scoped)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
