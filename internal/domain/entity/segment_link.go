// Package entity defines the domain entities.
package entity

import (
	"time"
)

// LinkType classifies the relationship between two segments.
type LinkType string

const (
	LinkTypeSameTopic       LinkType = "same_topic"
	LinkTypeContrastingView LinkType = "contrasting_view"
	LinkTypeElaboration     LinkType = "elaboration"
	LinkTypeExample         LinkType = "example"
	LinkTypeRelated         LinkType = "related"
)

// SegmentLink is a discovered semantic relationship between two segments
// from different sermons. Unique on (source, related).
type SegmentLink struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceSegmentID  string    `json:"source_segment_id" gorm:"type:uuid;uniqueIndex:idx_segment_links_pair;not null"`
	RelatedSegmentID string    `json:"related_segment_id" gorm:"type:uuid;uniqueIndex:idx_segment_links_pair;not null"`
	SimilarityScore  float64   `json:"similarity_score" gorm:"not null"`
	LinkType         LinkType  `json:"link_type" gorm:"type:varchar(32);not null;default:'same_topic'"`
	Confidence       float64   `json:"confidence" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name.
func (SegmentLink) TableName() string {
	return "segment_links"
}
