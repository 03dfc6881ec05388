package models

import (
	"time"
)

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected, ApplicationWithdrawn:
		return true
	}
	return false
}

// Application is a user's request to join a project.
type Application struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ProjectID   uint              `gorm:"not null;index" json:"project_id"`
	Project     Project           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"project"`
	ApplicantID uint              `gorm:"not null;index" json:"applicant_id"`
	Applicant   User              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"applicant"`
	Message     string            `gorm:"type:text" json:"message"`
	Status      ApplicationStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReviewedAt  *time.Time        `json:"reviewed_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

type Membership struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ProjectID uint       `gorm:"not null;uniqueIndex:idx_project_member" json:"project_id"`
	Project   Project    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_project_member;index" json:"user_id"`
	User      User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Role      MemberRole `gorm:"size:20;not null;default:'member'" json:"role"`
	CreatedAt time.Time  `json:"joined_at"`
}
