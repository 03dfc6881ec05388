package models

import (
	"time"
)

type ProjectStatus string

const (
	ProjectOpen       ProjectStatus = "open"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectClosed     ProjectStatus = "closed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectOpen, ProjectInProgress, ProjectCompleted, ProjectClosed:
		return true
	}
	return false
}

type Project struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Slug        string        `gorm:"uniqueIndex;size:36;not null" json:"slug"`
	OwnerID     uint          `gorm:"not null;index" json:"owner_id"`
	Owner       User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"owner"`
	CategoryID  uint          `gorm:"not null;index;default:1" json:"category_id"`
	Category    Category      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Status      ProjectStatus `gorm:"size:20;not null;default:'open';index" json:"status"`
	MaxMembers  int           `gorm:"default:0" json:"max_members"` // 0 means unlimited
	Popularity  int           `gorm:"default:0;index" json:"popularity"`
	Views       int           `gorm:"default:0" json:"views"`
	Tags        []ProjectTag  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"tags"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Filled by queries, not stored.
	MemberCount int `gorm:"-" json:"member_count"`
}

// ProjectTag is one technology or topic label on a project.
type ProjectTag struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	ProjectID uint   `gorm:"not null;uniqueIndex:idx_project_tag" json:"-"`
	Name      string `gorm:"size:40;not null;uniqueIndex:idx_project_tag;index" json:"name"`
}

func (p *Project) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return names
}
