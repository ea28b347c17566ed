package models

import (
	"time"
)

// Conversation is a private two-party channel. Participants are stored in
// canonical order (User1ID < User2ID) so one row exists per unordered pair.
type Conversation struct {
	ID        int       `json:"id" db:"id"`
	User1ID   int       `json:"user1_id" db:"user1_id"`
	User2ID   int       `json:"user2_id" db:"user2_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OtherParticipant returns the participant that is not userID. The receiver
// of a message is always derived this way; it is never stored on the message.
func (c Conversation) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

type ChatMessage struct {
	ID             int        `json:"id" db:"id"`
	ConversationID int        `json:"conversation_id" db:"conversation_id"`
	SenderID       int        `json:"sender_id" db:"sender_id"`
	SenderName     string     `json:"sender_name,omitempty"`
	Content        string     `json:"content" db:"content"`
	SentAt         time.Time  `json:"sent_at" db:"sent_at"`
	IsRead         bool       `json:"is_read" db:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty" db:"read_at"`
}

// ConversationSummary is the list-view shape: the conversation plus the
// partner's identity and the caller's unread count for it.
type ConversationSummary struct {
	Conversation
	PartnerID   int    `json:"partner_id"`
	PartnerName string `json:"partner_name"`
	UnreadCount int    `json:"unread_count"`
}
