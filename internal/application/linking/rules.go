// Package linking discovers and classifies semantic relationships
// between segments of different sermons within a series.
package linking

import (
	"strings"

	"sermon-search-api/internal/domain/entity"
	"sermon-search-api/internal/domain/scripture"
)

// Confidence bounds for the deterministic pre-pass. A marker hit never
// claims more certainty than 0.85; the floor is the same_topic default,
// which vector proximity alone already justifies.
const (
	confidenceFloor   = 0.70
	confidenceCeiling = 0.85

	confidenceContrast    = 0.75
	confidenceElaboration = 0.75
	confidenceExample     = 0.80
	confidenceSharedBook  = 0.85
)

// Rules is the language-specific marker set used to classify a related
// segment against its source. The vocabulary is pluggable per language;
// the classification order is fixed: contrast, example, elaboration,
// shared scripture, then the same_topic default.
type Rules struct {
	refs        *scripture.Ruleset
	contrast    []string
	example     []string
	elaboration []string
}

// NewRules builds the marker set for a language tag. Unknown languages
// get the English set.
func NewRules(language string, refs *scripture.Ruleset) *Rules {
	switch strings.ToLower(language) {
	case "pt-br", "pt":
		return &Rules{
			refs: refs,
			contrast: []string{
				"por outro lado", "mas ", "porém", "no entanto", "entretanto",
				"ao contrário", "diferente de",
			},
			example: []string{
				"por exemplo", "como exemplo", "pensem em", "imagine que",
				"é como quando",
			},
			elaboration: []string{
				"ou seja", "em outras palavras", "isso significa",
				"aprofundando", "mais profundamente", "detalhando",
			},
		}
	default:
		return &Rules{
			refs: refs,
			contrast: []string{
				"on the other hand", "however", "in contrast", "but ",
				"unlike", "whereas",
			},
			example: []string{
				"for example", "for instance", "think of", "imagine that",
				"it is like when",
			},
			elaboration: []string{
				"in other words", "that is to say", "this means",
				"going deeper", "more deeply", "to elaborate",
			},
		}
	}
}

// Classify runs the deterministic pre-pass over the related segment's
// text. Vector similarity already guarantees topical proximity, so the
// absence of any marker still yields a same_topic link at the floor
// confidence.
func (r *Rules) Classify(sourceText, relatedText string) (entity.LinkType, float64) {
	lowered := strings.ToLower(relatedText)

	if matchesAny(lowered, r.contrast) {
		return entity.LinkTypeContrastingView, clampConfidence(confidenceContrast)
	}
	if matchesAny(lowered, r.example) {
		return entity.LinkTypeExample, clampConfidence(confidenceExample)
	}
	if matchesAny(lowered, r.elaboration) {
		return entity.LinkTypeElaboration, clampConfidence(confidenceElaboration)
	}
	if r.refs != nil && len(r.refs.SharedBooks(sourceText, relatedText)) > 0 {
		return entity.LinkTypeSameTopic, clampConfidence(confidenceSharedBook)
	}
	return entity.LinkTypeSameTopic, confidenceFloor
}

func matchesAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func clampConfidence(c float64) float64 {
	if c < confidenceFloor {
		return confidenceFloor
	}
	if c > confidenceCeiling {
		return confidenceCeiling
	}
	return c
}
