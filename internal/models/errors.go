package models

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user with this email already exists")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists")
	ErrUserNotParticipant   = errors.New("user is not a participant")
	ErrGroupChatNotFound    = errors.New("group chat not found")
	ErrNotGroupMember       = errors.New("user is not a member of this group chat")
	ErrAlreadyGroupMember   = errors.New("user is already a member of this group chat")
	ErrNotGroupCreator      = errors.New("only the creator can delete this group chat")
	ErrMessageNotFound      = errors.New("message not found")
)

// ValidationError rejects bad input before any persistence write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

