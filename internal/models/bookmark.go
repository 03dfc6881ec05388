package models

import (
	"time"
)

// Bookmark is a project saved by a user.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_user_project" json:"user_id"`
	ProjectID uint      `gorm:"not null;index;uniqueIndex:idx_user_project" json:"project_id"`
	Project   Project   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"project"`
	CreatedAt time.Time `json:"created_at"`
}
