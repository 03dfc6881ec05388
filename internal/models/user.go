package models

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID         uint                        `gorm:"primaryKey" json:"id"`
	Username   string                      `gorm:"uniqueIndex;size:40;not null" json:"username"`
	Email      string                      `gorm:"uniqueIndex;not null" json:"-"`
	Password   string                      `json:"-"` // bcrypt hash, empty for OAuth-only accounts
	FullName   string                      `gorm:"size:100" json:"full_name"`
	AvatarURL  string                      `json:"avatar_url"`
	Bio        string                      `gorm:"size:500" json:"bio"`
	Skills     datatypes.JSONSlice[string] `json:"skills"`
	GitHubURL  string                      `gorm:"column:github_url" json:"github_url"`
	WebsiteURL string                      `json:"website_url"`
	GitHubID   string                      `gorm:"column:github_id;index" json:"-"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// AuthorSummary is the minimal display shape joined onto comments and messages.
type AuthorSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

func (u User) Summary() AuthorSummary {
	return AuthorSummary{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}
