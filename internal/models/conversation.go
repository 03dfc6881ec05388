package models

import (
	"time"
)

// Conversation is a direct message thread between two users.
type Conversation struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Participants  []Participant `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	// DirectKey is "<low user id>:<high user id>" for two-person conversations.
	DirectKey     *string       `gorm:"size:64;uniqueIndex" json:"-"`
	LastMessageAt *time.Time    `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type Participant struct {
	ID             uint       `gorm:"primaryKey" json:"-"`
	ConversationID uint       `gorm:"not null;uniqueIndex:idx_conversation_user" json:"conversation_id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_conversation_user;index" json:"user_id"`
	User           User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	LastReadAt     *time.Time `json:"last_read_at"`
}

type Message struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ConversationID uint         `gorm:"not null;index" json:"conversation_id"`
	Conversation   Conversation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	SenderID       uint         `gorm:"not null;index" json:"sender_id"`
	Sender         User         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content        string       `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time    `gorm:"index" json:"created_at"`
}
