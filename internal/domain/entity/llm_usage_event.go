// Package entity defines the domain entities.
package entity

import "time"

// LLMUsageEvent records one completed backend call for accounting.
type LLMUsageEvent struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Backend          string    `json:"backend" gorm:"type:varchar(32);not null"`
	Model            string    `json:"model" gorm:"type:varchar(64);not null"`
	Operation        string    `json:"operation" gorm:"type:varchar(16);not null"`
	TokensPrompt     int       `json:"tokens_prompt" gorm:"not null;default:0"`
	TokensCompletion int       `json:"tokens_completion" gorm:"not null;default:0"`
	DurationMs       int       `json:"duration_ms" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name.
func (LLMUsageEvent) TableName() string {
	return "llm_usage_events"
}
