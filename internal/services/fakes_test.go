package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"OJTMessenger/server/internal/models"
)

// fakeStore holds the in-memory state shared by the fake repositories. The
// repo fakes mirror the store's semantics: canonical conversation pairs,
// unique memberships, insert-if-absent receipts, cursor-based group unread
// counting.
type fakeStore struct {
	nextID int

	users map[int]*models.User

	conversations []*models.Conversation
	chatMessages  []*models.ChatMessage

	groups        []*models.GroupChat
	members       []*models.GroupChatMember
	groupMessages []*models.GroupChatMessage
	receipts      []*models.GroupChatMessageRead

	// when set, the next CreateConversation inserts the row on behalf of a
	// concurrent writer and reports the unique-constraint conflict
	conversationConflict bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int]*models.User)}
}

func (s *fakeStore) addUser(id int, name, role string) {
	s.users[id] = &models.User{
		ID:       id,
		FullName: name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:     role,
	}
	if id > s.nextID {
		s.nextID = id
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) conversationByID(conversationID int) *models.Conversation {
	for _, conv := range s.conversations {
		if conv.ID == conversationID {
			return conv
		}
	}
	return nil
}

func (s *fakeStore) memberOf(groupChatID, userID int) *models.GroupChatMember {
	for _, member := range s.members {
		if member.GroupChatID == groupChatID && member.UserID == userID {
			return member
		}
	}
	return nil
}

type fakeUserRepo struct{ *fakeStore }

func (r fakeUserRepo) GetByID(ctx context.Context, userID int) (*models.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (r fakeUserRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r fakeUserRepo) Create(ctx context.Context, user *models.User, now time.Time) (int, error) {
	created := *user
	created.ID = r.id()
	created.CreatedAt = now
	r.users[created.ID] = &created
	return created.ID, nil
}

func (r fakeUserRepo) Search(ctx context.Context, term string) ([]models.User, error) {
	var result []models.User
	for _, user := range r.users {
		if strings.Contains(strings.ToLower(user.FullName), strings.ToLower(term)) {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

type fakeChatRepo struct{ *fakeStore }

func (r fakeChatRepo) GetConversation(ctx context.Context, user1ID, user2ID int) (*models.Conversation, error) {
	for _, conv := range r.conversations {
		if conv.User1ID == user1ID && conv.User2ID == user2ID {
			out := *conv
			return &out, nil
		}
	}
	return nil, models.ErrConversationNotFound
}

func (r fakeChatRepo) GetConversationByID(ctx context.Context, conversationID int) (*models.Conversation, error) {
	conv := r.conversationByID(conversationID)
	if conv == nil {
		return nil, models.ErrConversationNotFound
	}
	out := *conv
	return &out, nil
}

func (r fakeChatRepo) CreateConversation(ctx context.Context, user1ID, user2ID int, now time.Time) (*models.Conversation, error) {
	if _, err := r.GetConversation(ctx, user1ID, user2ID); err == nil {
		return nil, models.ErrConversationExists
	}

	conv := &models.Conversation{ID: r.id(), User1ID: user1ID, User2ID: user2ID, CreatedAt: now}
	r.fakeStore.conversations = append(r.fakeStore.conversations, conv)

	if r.conversationConflict {
		r.fakeStore.conversationConflict = false
		return nil, models.ErrConversationExists
	}

	out := *conv
	return &out, nil
}

func (r fakeChatRepo) GetUserConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	var result []models.Conversation
	for _, conv := range r.conversations {
		if conv.HasParticipant(userID) {
			result = append(result, *conv)
		}
	}
	return result, nil
}

func (r fakeChatRepo) InsertMessage(ctx context.Context, conversationID, senderID int, content string, now time.Time) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:             r.id(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		SentAt:         now,
	}
	r.fakeStore.chatMessages = append(r.fakeStore.chatMessages, msg)
	out := *msg
	return &out, nil
}

func (r fakeChatRepo) GetMessagesByConversation(ctx context.Context, conversationID int) ([]models.ChatMessage, error) {
	var result []models.ChatMessage
	for _, msg := range r.chatMessages {
		if msg.ConversationID == conversationID {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SentAt.Equal(result[j].SentAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].SentAt.Before(result[j].SentAt)
	})
	return result, nil
}

func (r fakeChatRepo) MarkMessagesRead(ctx context.Context, conversationID, readerID int, now time.Time) ([]int, []int, error) {
	var messageIDs []int
	senderSet := make(map[int]struct{})
	for _, msg := range r.chatMessages {
		if msg.ConversationID == conversationID && msg.SenderID != readerID && !msg.IsRead {
			msg.IsRead = true
			readAt := now
			msg.ReadAt = &readAt
			messageIDs = append(messageIDs, msg.ID)
			senderSet[msg.SenderID] = struct{}{}
		}
	}
	var senderIDs []int
	for senderID := range senderSet {
		senderIDs = append(senderIDs, senderID)
	}
	return messageIDs, senderIDs, nil
}

func (r fakeChatRepo) UnreadCount(ctx context.Context, userID int) (int, error) {
	count := 0
	for _, msg := range r.chatMessages {
		conv := r.conversationByID(msg.ConversationID)
		if conv != nil && conv.HasParticipant(userID) && msg.SenderID != userID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (r fakeChatRepo) UnreadCountForConversation(ctx context.Context, conversationID, userID int) (int, error) {
	count := 0
	for _, msg := range r.chatMessages {
		if msg.ConversationID == conversationID && msg.SenderID != userID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (r fakeChatRepo) CountMessagesSince(ctx context.Context, userID int, since time.Time) (int, error) {
	count := 0
	for _, msg := range r.chatMessages {
		conv := r.conversationByID(msg.ConversationID)
		if conv != nil && conv.HasParticipant(userID) && msg.SenderID != userID && msg.SentAt.After(since) {
			count++
		}
	}
	return count, nil
}

type fakeGroupRepo struct{ *fakeStore }

func (r fakeGroupRepo) InsertGroupChat(ctx context.Context, name, description string, createdBy int, now time.Time) (*models.GroupChat, error) {
	group := &models.GroupChat{
		ID:          r.id(),
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		IsActive:    true,
	}
	r.fakeStore.groups = append(r.fakeStore.groups, group)
	out := *group
	return &out, nil
}

func (r fakeGroupRepo) GetGroupChatByID(ctx context.Context, groupChatID int) (*models.GroupChat, error) {
	for _, group := range r.groups {
		if group.ID == groupChatID {
			out := *group
			return &out, nil
		}
	}
	return nil, models.ErrGroupChatNotFound
}

func (r fakeGroupRepo) GetUserGroupChats(ctx context.Context, userID int) ([]models.GroupChat, error) {
	var result []models.GroupChat
	for _, group := range r.groups {
		if group.IsActive && r.memberOf(group.ID, userID) != nil {
			result = append(result, *group)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r fakeGroupRepo) SoftDeleteGroupChat(ctx context.Context, groupChatID int) error {
	for _, group := range r.groups {
		if group.ID == groupChatID {
			group.IsActive = false
			return nil
		}
	}
	return models.ErrGroupChatNotFound
}

func (r fakeGroupRepo) InsertMember(ctx context.Context, groupChatID, userID int, isAdmin bool, now time.Time) (*models.GroupChatMember, error) {
	if r.memberOf(groupChatID, userID) != nil {
		return nil, models.ErrAlreadyGroupMember
	}
	member := &models.GroupChatMember{
		ID:          r.id(),
		GroupChatID: groupChatID,
		UserID:      userID,
		JoinedAt:    now,
		IsAdmin:     isAdmin,
		LastReadAt:  now,
	}
	r.fakeStore.members = append(r.fakeStore.members, member)
	out := *member
	return &out, nil
}

func (r fakeGroupRepo) DeleteMember(ctx context.Context, groupChatID, userID int) (bool, error) {
	for i, member := range r.members {
		if member.GroupChatID == groupChatID && member.UserID == userID {
			r.fakeStore.members = append(r.fakeStore.members[:i], r.fakeStore.members[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r fakeGroupRepo) IsMember(ctx context.Context, groupChatID, userID int) (bool, error) {
	return r.memberOf(groupChatID, userID) != nil, nil
}

func (r fakeGroupRepo) GetMember(ctx context.Context, groupChatID, userID int) (*models.GroupChatMember, error) {
	member := r.memberOf(groupChatID, userID)
	if member == nil {
		return nil, models.ErrNotGroupMember
	}
	out := *member
	return &out, nil
}

func (r fakeGroupRepo) GetMembers(ctx context.Context, groupChatID int) ([]models.GroupChatMember, error) {
	var result []models.GroupChatMember
	for _, member := range r.members {
		if member.GroupChatID == groupChatID {
			result = append(result, *member)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

func (r fakeGroupRepo) AdvanceLastRead(ctx context.Context, groupChatID, userID int, now time.Time) error {
	member := r.memberOf(groupChatID, userID)
	if member != nil && member.LastReadAt.Before(now) {
		member.LastReadAt = now
	}
	return nil
}

func (r fakeGroupRepo) InsertMessage(ctx context.Context, groupChatID, senderID int, content string, now time.Time) (*models.GroupChatMessage, error) {
	msg := &models.GroupChatMessage{
		ID:          r.id(),
		GroupChatID: groupChatID,
		SenderID:    senderID,
		Content:     content,
		CreatedAt:   now,
	}
	r.fakeStore.groupMessages = append(r.fakeStore.groupMessages, msg)
	out := *msg
	return &out, nil
}

func (r fakeGroupRepo) GetMessages(ctx context.Context, groupChatID, limit int) ([]models.GroupChatMessage, error) {
	var result []models.GroupChatMessage
	for _, msg := range r.groupMessages {
		if msg.GroupChatID == groupChatID {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r fakeGroupRepo) GetMessagesAfter(ctx context.Context, groupChatID int, after time.Time) ([]models.GroupChatMessage, error) {
	var result []models.GroupChatMessage
	for _, msg := range r.groupMessages {
		if msg.GroupChatID == groupChatID && msg.CreatedAt.After(after) {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r fakeGroupRepo) InsertReadReceipt(ctx context.Context, messageID, userID int, now time.Time) error {
	for _, receipt := range r.receipts {
		if receipt.MessageID == messageID && receipt.UserID == userID {
			return nil
		}
	}
	r.fakeStore.receipts = append(r.fakeStore.receipts, &models.GroupChatMessageRead{
		ID:        r.id(),
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    now,
	})
	return nil
}

func (r fakeGroupRepo) HasUserReadMessage(ctx context.Context, messageID, userID int) (bool, error) {
	for _, receipt := range r.receipts {
		if receipt.MessageID == messageID && receipt.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeGroupRepo) MessageReadCount(ctx context.Context, messageID int) (int, error) {
	count := 0
	for _, receipt := range r.receipts {
		if receipt.MessageID == messageID {
			count++
		}
	}
	return count, nil
}

func (r fakeGroupRepo) UnreadGroupCount(ctx context.Context, userID int) (int, error) {
	total := 0
	for _, member := range r.members {
		if member.UserID != userID {
			continue
		}
		group, err := r.GetGroupChatByID(ctx, member.GroupChatID)
		if err != nil || !group.IsActive {
			continue
		}
		count, err := r.UnreadGroupCountForChat(ctx, member.GroupChatID, userID)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

func (r fakeGroupRepo) UnreadGroupCountForChat(ctx context.Context, groupChatID, userID int) (int, error) {
	member := r.memberOf(groupChatID, userID)
	if member == nil {
		return 0, nil
	}
	count := 0
	for _, msg := range r.groupMessages {
		if msg.GroupChatID == groupChatID && msg.SenderID != userID && msg.CreatedAt.After(member.LastReadAt) {
			count++
		}
	}
	return count, nil
}
