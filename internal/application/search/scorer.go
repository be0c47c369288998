package search

import (
	"strings"
	"time"

	"sermon-search-api/internal/config"
)

// Factors reports every boost applied to a base score. Each factor is a
// multiplier; the enhanced score is their running product with the base.
type Factors struct {
	Base             float64 `json:"base"`
	Recency          float64 `json:"recency"`
	TopicConfidence  float64 `json:"topic_confidence"`
	SpeakerAuthority float64 `json:"speaker_authority"`
	ReferenceDensity float64 `json:"reference_density"`
	Enhanced         float64 `json:"enhanced"`
}

// ScoreInput carries the context a single scoring call depends on.
// Pointer fields distinguish "absent" from zero values.
type ScoreInput struct {
	SermonDate       *time.Time
	TopicConfidence  *float64
	Speaker          string
	RequestedSpeaker string
	ReferenceCount   int
}

// Scorer computes enhanced relevance scores. It is a pure function of
// its config and inputs; the clock is injectable for tests.
type Scorer struct {
	cfg config.ScoringConfig
	now func() time.Time
}

// NewScorer creates a scorer, filling unset config fields with the
// standard boosts.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	if cfg.RecencyBoost <= 0 {
		cfg.RecencyBoost = 0.10
	}
	if cfg.RecencyWindowDays <= 0 {
		cfg.RecencyWindowDays = 30
	}
	if cfg.SpeakerBoost <= 0 {
		cfg.SpeakerBoost = 0.20
	}
	if cfg.ReferenceBoost <= 0 {
		cfg.ReferenceBoost = 0.05
	}
	if cfg.MaxReferences <= 0 {
		cfg.MaxReferences = 5
	}
	if cfg.DefaultTopicConfidence <= 0 {
		cfg.DefaultTopicConfidence = 0.7
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// Score applies the boost factors to a base score in fixed order:
// recency, topic confidence, speaker authority, reference density.
// The result is the running product and is not re-normalized.
func (s *Scorer) Score(base float64, in ScoreInput) Factors {
	f := Factors{
		Base:             base,
		Recency:          1.0,
		TopicConfidence:  1.0,
		SpeakerAuthority: 1.0,
		ReferenceDensity: 1.0,
	}
	if base < 0 {
		base = 0
		f.Base = 0
	}

	f.Recency = s.recencyFactor(in.SermonDate)

	confidence := s.cfg.DefaultTopicConfidence
	if in.TopicConfidence != nil {
		confidence = *in.TopicConfidence
	}
	f.TopicConfidence = clamp(confidence, 0.3, 1.0)

	if in.RequestedSpeaker != "" && speakersMatch(in.Speaker, in.RequestedSpeaker) {
		f.SpeakerAuthority = 1.0 + s.cfg.SpeakerBoost
	}

	refs := in.ReferenceCount
	if refs > s.cfg.MaxReferences {
		refs = s.cfg.MaxReferences
	}
	if refs > 0 {
		f.ReferenceDensity = 1.0 + s.cfg.ReferenceBoost*float64(refs)
	}

	f.Enhanced = base * f.Recency * f.TopicConfidence * f.SpeakerAuthority * f.ReferenceDensity
	return f
}

// recencyFactor scales linearly from full boost for today down to no
// boost at the window edge. Dates in the future count as today.
func (s *Scorer) recencyFactor(date *time.Time) float64 {
	if date == nil {
		return 1.0
	}

	ageDays := s.now().Sub(*date).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	window := float64(s.cfg.RecencyWindowDays)
	if ageDays >= window {
		return 1.0
	}
	return 1.0 + s.cfg.RecencyBoost*(1.0-ageDays/window)
}

func speakersMatch(a, b string) bool {
	return normalizeSpeaker(a) == normalizeSpeaker(b) && normalizeSpeaker(a) != ""
}

func normalizeSpeaker(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
