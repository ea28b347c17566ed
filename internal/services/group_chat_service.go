package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"OJTMessenger/server/internal/models"
	"OJTMessenger/server/internal/repository"

	"github.com/jonboulle/clockwork"
)

const (
	minGroupNameLength        = 3
	maxGroupNameLength        = 200
	maxGroupDescriptionLength = 500
	defaultGroupMessageLimit  = 50
)

type GroupChatService interface {
	CreateGroupChat(ctx context.Context, creatorID int, name, description string) (*models.GroupChat, error)
	GetUserGroupChats(ctx context.Context, userID int) ([]models.GroupChat, error)
	GetGroupChatByID(ctx context.Context, groupChatID int) (*models.GroupChat, error)
	DeleteGroupChat(ctx context.Context, groupChatID, requesterID int) error

	AddMember(ctx context.Context, groupChatID, userID int) error
	RemoveMember(ctx context.Context, groupChatID, userID int) (bool, error)
	IsMember(ctx context.Context, groupChatID, userID int) (bool, error)
	GetGroupChatMembers(ctx context.Context, groupChatID int) ([]models.GroupChatMember, error)

	SendMessage(ctx context.Context, groupChatID, senderID int, content string) (*models.GroupChatMessage, error)
	GetGroupChatMessages(ctx context.Context, groupChatID, limit int) ([]models.GroupChatMessage, error)

	MarkGroupChatAsRead(ctx context.Context, groupChatID, userID int) error
	GetUnreadGroupMessageCount(ctx context.Context, userID int) (int, error)
	GetUnreadGroupMessageCountForChat(ctx context.Context, groupChatID, userID int) (int, error)
	AddReadReceipt(ctx context.Context, messageID, userID int) error
	HasUserReadMessage(ctx context.Context, messageID, userID int) (bool, error)
	GetMessageReadCount(ctx context.Context, messageID int) (int, error)
}

type groupChatService struct {
	repo  repository.GroupChatRepository
	users repository.UserRepository
	clock clockwork.Clock
}

func NewGroupChatService(repo repository.GroupChatRepository, users repository.UserRepository, clock clockwork.Clock) *groupChatService {
	return &groupChatService{
		repo:  repo,
		users: users,
		clock: clock,
	}
}

// CreateGroupChat creates an active group and joins the creator as its first
// member, flagged admin. The returned group carries the member list and an
// empty message collection.
func (gs *groupChatService) CreateGroupChat(ctx context.Context, creatorID int, name, description string) (*models.GroupChat, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minGroupNameLength || n > maxGroupNameLength {
		return nil, models.NewValidationError("name", fmt.Sprintf("group name must be between %d and %d characters", minGroupNameLength, maxGroupNameLength))
	}
	if utf8.RuneCountInString(description) > maxGroupDescriptionLength {
		return nil, models.NewValidationError("description", fmt.Sprintf("group description cannot exceed %d characters", maxGroupDescriptionLength))
	}

	creator, err := gs.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	group, err := gs.repo.InsertGroupChat(ctx, name, description, creatorID, gs.clock.Now())
	if err != nil {
		return nil, err
	}

	member, err := gs.repo.InsertMember(ctx, group.ID, creatorID, true, gs.clock.Now())
	if err != nil {
		return nil, err
	}
	member.UserName = creator.FullName

	group.CreatorName = creator.FullName
	group.Members = []models.GroupChatMember{*member}
	group.Messages = []models.GroupChatMessage{}
	return group, nil
}

func (gs *groupChatService) GetUserGroupChats(ctx context.Context, userID int) ([]models.GroupChat, error) {
	return gs.repo.GetUserGroupChats(ctx, userID)
}

// GetGroupChatByID returns the group with members and recent messages
// populated. Soft-deleted groups are reported as not found.
func (gs *groupChatService) GetGroupChatByID(ctx context.Context, groupChatID int) (*models.GroupChat, error) {
	group, err := gs.repo.GetGroupChatByID(ctx, groupChatID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, models.ErrGroupChatNotFound
	}

	members, err := gs.repo.GetMembers(ctx, groupChatID)
	if err != nil {
		return nil, err
	}
	group.Members = members

	messages, err := gs.repo.GetMessages(ctx, groupChatID, defaultGroupMessageLimit)
	if err != nil {
		return nil, err
	}
	group.Messages = messages

	return group, nil
}

// DeleteGroupChat soft-deletes the group. Only the original creator may do
// this; the rows stay in place for auditing.
func (gs *groupChatService) DeleteGroupChat(ctx context.Context, groupChatID, requesterID int) error {
	group, err := gs.repo.GetGroupChatByID(ctx, groupChatID)
	if err != nil {
		return err
	}
	if !group.IsActive {
		return models.ErrGroupChatNotFound
	}
	if group.CreatedBy != requesterID {
		return models.ErrNotGroupCreator
	}

	return gs.repo.SoftDeleteGroupChat(ctx, groupChatID)
}

// AddMember joins userID to the group. Adding an existing member is an
// explicit duplicate error, never a silent success. No admin-only restriction
// is enforced here; callers gate on their own membership.
func (gs *groupChatService) AddMember(ctx context.Context, groupChatID, userID int) error {
	if _, err := gs.users.GetByID(ctx, userID); err != nil {
		return err
	}

	group, err := gs.repo.GetGroupChatByID(ctx, groupChatID)
	if err != nil {
		return err
	}
	if !group.IsActive {
		return models.ErrGroupChatNotFound
	}

	_, err = gs.repo.InsertMember(ctx, groupChatID, userID, false, gs.clock.Now())
	return err
}

func (gs *groupChatService) RemoveMember(ctx context.Context, groupChatID, userID int) (bool, error) {
	return gs.repo.DeleteMember(ctx, groupChatID, userID)
}

func (gs *groupChatService) IsMember(ctx context.Context, groupChatID, userID int) (bool, error) {
	return gs.repo.IsMember(ctx, groupChatID, userID)
}

func (gs *groupChatService) GetGroupChatMembers(ctx context.Context, groupChatID int) ([]models.GroupChatMember, error) {
	return gs.repo.GetMembers(ctx, groupChatID)
}

// SendMessage persists a message from a current member and immediately
// records the sender's own read receipt.
func (gs *groupChatService) SendMessage(ctx context.Context, groupChatID, senderID int, content string) (*models.GroupChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("content", "message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, models.NewValidationError("content", fmt.Sprintf("message content cannot exceed %d characters", maxMessageLength))
	}

	group, err := gs.repo.GetGroupChatByID(ctx, groupChatID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, models.ErrGroupChatNotFound
	}

	isMember, err := gs.repo.IsMember(ctx, groupChatID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, models.ErrNotGroupMember
	}

	msg, err := gs.repo.InsertMessage(ctx, groupChatID, senderID, content, gs.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := gs.repo.InsertReadReceipt(ctx, msg.ID, senderID, gs.clock.Now()); err != nil {
		return nil, err
	}

	return msg, nil
}

func (gs *groupChatService) GetGroupChatMessages(ctx context.Context, groupChatID, limit int) ([]models.GroupChatMessage, error) {
	if limit <= 0 {
		limit = defaultGroupMessageLimit
	}
	return gs.repo.GetMessages(ctx, groupChatID, limit)
}

// MarkGroupChatAsRead advances the member's read cursor and backfills a read
// receipt for every other-sender message created after the previous cursor.
// The receipt table keeps "who read message X"; the cursor keeps unread
// counting cheap. Repeated calls insert nothing new.
func (gs *groupChatService) MarkGroupChatAsRead(ctx context.Context, groupChatID, userID int) error {
	member, err := gs.repo.GetMember(ctx, groupChatID, userID)
	if err != nil {
		return err
	}

	// The cursor target is fixed before the fetch. A message committed while
	// we read gets no receipt here, but it stays past the cursor and unread,
	// so the next mark picks it up instead of losing it.
	now := gs.clock.Now()

	messages, err := gs.repo.GetMessagesAfter(ctx, groupChatID, member.LastReadAt)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if msg.SenderID == userID {
			continue
		}
		if err := gs.repo.InsertReadReceipt(ctx, msg.ID, userID, now); err != nil {
			return err
		}
	}

	return gs.repo.AdvanceLastRead(ctx, groupChatID, userID, now)
}

func (gs *groupChatService) GetUnreadGroupMessageCount(ctx context.Context, userID int) (int, error) {
	return gs.repo.UnreadGroupCount(ctx, userID)
}

func (gs *groupChatService) GetUnreadGroupMessageCountForChat(ctx context.Context, groupChatID, userID int) (int, error) {
	return gs.repo.UnreadGroupCountForChat(ctx, groupChatID, userID)
}

func (gs *groupChatService) AddReadReceipt(ctx context.Context, messageID, userID int) error {
	return gs.repo.InsertReadReceipt(ctx, messageID, userID, gs.clock.Now())
}

func (gs *groupChatService) HasUserReadMessage(ctx context.Context, messageID, userID int) (bool, error) {
	return gs.repo.HasUserReadMessage(ctx, messageID, userID)
}

func (gs *groupChatService) GetMessageReadCount(ctx context.Context, messageID int) (int, error) {
	return gs.repo.MessageReadCount(ctx, messageID)
}
