// Package entity defines the domain entities.
package entity

import (
	"time"
)

// Series groups sermons that belong to the same collection.
type Series struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Speaker     string    `json:"speaker,omitempty" gorm:"type:varchar(128)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name.
func (Series) TableName() string {
	return "series"
}
