// Package entity defines the domain entities.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Sermon is one transcribed source item. It owns zero or more segments.
type Sermon struct {
	ID          string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SeriesID    string     `json:"series_id" gorm:"type:uuid;index;not null"`
	Title       string     `json:"title" gorm:"type:varchar(255)"`
	Speaker     string     `json:"speaker,omitempty" gorm:"type:varchar(128);index"`
	FullText    string     `json:"full_text,omitempty" gorm:"type:text"`
	TextHash    string     `json:"text_hash,omitempty" gorm:"type:varchar(64);index"`
	DurationSec float64    `json:"duration_sec" gorm:"default:0"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ActualDate  *time.Time `json:"actual_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name.
func (Sermon) TableName() string {
	return "sermons"
}

// HashText computes the content hash used to gate embedding regeneration.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Date returns the best available date for recency scoring: the actual
// preaching date when known, otherwise the publish date.
func (s *Sermon) Date() *time.Time {
	if s.ActualDate != nil {
		return s.ActualDate
	}
	return s.PublishedAt
}
