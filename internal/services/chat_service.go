package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"OJTMessenger/server/internal/models"
	"OJTMessenger/server/internal/repository"

	"github.com/jonboulle/clockwork"
)

const maxMessageLength = 1000

type ChatService interface {
	GetOrCreateConversation(ctx context.Context, userAID, userBID int) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, conversationID int) (*models.Conversation, error)
	GetUserConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	SendPrivateMessage(ctx context.Context, senderID, receiverID int, content string) (*models.ChatMessage, error)
	GetMessagesByConversation(ctx context.Context, conversationID int) ([]models.ChatMessage, error)
	MarkMessagesAsRead(ctx context.Context, conversationID, readerID int) ([]int, []int, error)
	GetUnreadCount(ctx context.Context, userID int) (int, error)
	GetUnreadCountForConversation(ctx context.Context, conversationID, userID int) (int, error)
	CountMessagesSince(ctx context.Context, userID int, since time.Time) (int, error)
}

type chatService struct {
	repo  repository.ChatRepository
	users repository.UserRepository
	clock clockwork.Clock
}

func NewChatService(repo repository.ChatRepository, users repository.UserRepository, clock clockwork.Clock) *chatService {
	return &chatService{
		repo:  repo,
		users: users,
		clock: clock,
	}
}

// GetOrCreateConversation resolves the single conversation for the unordered
// pair {userA, userB}, creating it if absent. A concurrent create for the
// same pair loses the unique-constraint race and re-reads the winner's row.
func (cs *chatService) GetOrCreateConversation(ctx context.Context, userAID, userBID int) (*models.Conversation, error) {
	if userAID == userBID {
		return nil, models.NewValidationError("receiver_id", "cannot start a conversation with yourself")
	}

	user1ID, user2ID := orderPair(userAID, userBID)

	conv, err := cs.repo.GetConversation(ctx, user1ID, user2ID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, models.ErrConversationNotFound) {
		return nil, err
	}

	conv, err = cs.repo.CreateConversation(ctx, user1ID, user2ID, cs.clock.Now())
	if errors.Is(err, models.ErrConversationExists) {
		return cs.repo.GetConversation(ctx, user1ID, user2ID)
	}
	return conv, err
}

func (cs *chatService) GetConversationByID(ctx context.Context, conversationID int) (*models.Conversation, error) {
	return cs.repo.GetConversationByID(ctx, conversationID)
}

func (cs *chatService) GetUserConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	conversations, err := cs.repo.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := models.ConversationSummary{
			Conversation: conv,
			PartnerID:    conv.OtherParticipant(userID),
		}

		partner, err := cs.users.GetByID(ctx, summary.PartnerID)
		if err == nil {
			summary.PartnerName = partner.FullName
		}

		unread, err := cs.repo.UnreadCountForConversation(ctx, conv.ID, userID)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (cs *chatService) SendPrivateMessage(ctx context.Context, senderID, receiverID int, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("content", "message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, models.NewValidationError("content", fmt.Sprintf("message content cannot exceed %d characters", maxMessageLength))
	}

	if _, err := cs.users.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	conv, err := cs.GetOrCreateConversation(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	return cs.repo.InsertMessage(ctx, conv.ID, senderID, content, cs.clock.Now())
}

func (cs *chatService) GetMessagesByConversation(ctx context.Context, conversationID int) ([]models.ChatMessage, error) {
	if _, err := cs.repo.GetConversationByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return cs.repo.GetMessagesByConversation(ctx, conversationID)
}

// MarkMessagesAsRead flips every unread message in the conversation not sent
// by readerID to read. Calling it again is a no-op. It returns the affected
// message IDs and the distinct senders so the gateway can push read receipts.
func (cs *chatService) MarkMessagesAsRead(ctx context.Context, conversationID, readerID int) ([]int, []int, error) {
	conv, err := cs.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(readerID) {
		return nil, nil, models.ErrUserNotParticipant
	}

	return cs.repo.MarkMessagesRead(ctx, conversationID, readerID, cs.clock.Now())
}

func (cs *chatService) GetUnreadCount(ctx context.Context, userID int) (int, error) {
	return cs.repo.UnreadCount(ctx, userID)
}

func (cs *chatService) GetUnreadCountForConversation(ctx context.Context, conversationID, userID int) (int, error) {
	return cs.repo.UnreadCountForConversation(ctx, conversationID, userID)
}

// CountMessagesSince reports how many messages from other users arrived for
// userID after the given boundary. Dashboards pass the viewer's last-seen
// timestamp to drive the "you have N new messages" banner.
func (cs *chatService) CountMessagesSince(ctx context.Context, userID int, since time.Time) (int, error) {
	return cs.repo.CountMessagesSince(ctx, userID, since)
}

func orderPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
