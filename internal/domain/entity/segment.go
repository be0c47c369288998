// Package entity defines the domain entities.
package entity

import (
	"time"
)

// Segment is the atomic retrieval unit: a bounded, timestamped slice of
// a sermon transcript. Text is immutable once created; the embedding is
// rewritten only when the parent sermon's text hash changes.
type Segment struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SermonID     string    `json:"sermon_id" gorm:"type:uuid;index;not null"`
	SeriesID     string    `json:"series_id" gorm:"type:uuid;index;not null"`
	StartWord    int       `json:"start_word" gorm:"not null"`
	EndWord      int       `json:"end_word" gorm:"not null"`
	StartTimeSec float64   `json:"start_time_sec" gorm:"default:0"`
	EndTimeSec   float64   `json:"end_time_sec" gorm:"default:0"`
	Text         string    `json:"text" gorm:"type:text;not null"`
	Embedding    []float32 `json:"-" gorm:"-"`
	ContentHash  string    `json:"content_hash,omitempty" gorm:"type:varchar(64);index"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name.
func (Segment) TableName() string {
	return "segments"
}

// WordCount returns the number of words covered by the segment.
func (s *Segment) WordCount() int {
	return s.EndWord - s.StartWord
}
