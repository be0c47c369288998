// Package entity defines the domain entities.
package entity

import (
	"time"
)

// SermonSummary is the whole-sermon aggregate: a generated summary, an
// ordered topic list, and a mean embedding over the sermon's segments.
// Regenerated on demand, never incrementally.
type SermonSummary struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SermonID  string    `json:"sermon_id" gorm:"type:uuid;uniqueIndex;not null"`
	SeriesID  string    `json:"series_id" gorm:"type:uuid;index;not null"`
	Summary   string    `json:"summary" gorm:"type:text"`
	Topics    []string  `json:"topics" gorm:"type:jsonb;serializer:json"`
	Embedding []float32 `json:"-" gorm:"-"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name.
func (SermonSummary) TableName() string {
	return "sermon_summaries"
}

// SeriesSummary is the whole-series aggregate.
type SeriesSummary struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SeriesID  string    `json:"series_id" gorm:"type:uuid;uniqueIndex;not null"`
	Summary   string    `json:"summary" gorm:"type:text"`
	Topics    []string  `json:"topics" gorm:"type:jsonb;serializer:json"`
	Embedding []float32 `json:"-" gorm:"-"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name.
func (SeriesSummary) TableName() string {
	return "series_summaries"
}
