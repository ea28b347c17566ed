package models

import (
	"time"
)

// GroupChat is a named multi-party channel. Deleting a group clears IsActive
// instead of removing the row, so history stays queryable.
type GroupChat struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedBy   int       `json:"created_by" db:"created_by"`
	CreatorName string    `json:"creator_name,omitempty"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	IsActive    bool      `json:"is_active" db:"is_active"`

	Members  []GroupChatMember  `json:"members,omitempty"`
	Messages []GroupChatMessage `json:"messages,omitempty"`
}

// GroupChatMember is a membership row. LastReadAt is the member's read
// cursor: messages from other senders created after it count as unread.
type GroupChatMember struct {
	ID          int       `json:"id" db:"id"`
	GroupChatID int       `json:"group_chat_id" db:"group_chat_id"`
	UserID      int       `json:"user_id" db:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
	IsAdmin     bool      `json:"is_admin" db:"is_admin"`
	LastReadAt  time.Time `json:"last_read_at" db:"last_read_at"`
}

type GroupChatMessage struct {
	ID          int       `json:"id" db:"id"`
	GroupChatID int       `json:"group_chat_id" db:"group_chat_id"`
	SenderID    int       `json:"sender_id" db:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// GroupChatMessageRead records that a user has read a specific group message.
// One row exists per (message, user) pair.
type GroupChatMessageRead struct {
	ID        int       `json:"id" db:"id"`
	MessageID int       `json:"message_id" db:"message_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	ReadAt    time.Time `json:"read_at" db:"read_at"`
}
