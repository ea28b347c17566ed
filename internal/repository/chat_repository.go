package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"OJTMessenger/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ChatRepository is the message store for private conversations. Participant
// pairs are passed in canonical order (user1 < user2); the service layer owns
// the canonicalization.
type ChatRepository interface {
	GetConversation(ctx context.Context, user1ID, user2ID int) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, conversationID int) (*models.Conversation, error)
	CreateConversation(ctx context.Context, user1ID, user2ID int, now time.Time) (*models.Conversation, error)
	GetUserConversations(ctx context.Context, userID int) ([]models.Conversation, error)
	InsertMessage(ctx context.Context, conversationID, senderID int, content string, now time.Time) (*models.ChatMessage, error)
	GetMessagesByConversation(ctx context.Context, conversationID int) ([]models.ChatMessage, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID int, now time.Time) ([]int, []int, error)
	UnreadCount(ctx context.Context, userID int) (int, error)
	UnreadCountForConversation(ctx context.Context, conversationID, userID int) (int, error)
	CountMessagesSince(ctx context.Context, userID int, since time.Time) (int, error)
}

type chatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *chatRepository {
	return &chatRepository{pool: pool}
}

func (r *chatRepository) GetConversation(ctx context.Context, user1ID, user2ID int) (*models.Conversation, error) {
	query := psql.Select("id", "user1_id", "user2_id", "created_at").
		From("conversations").
		Where(squirrel.And{
			squirrel.Eq{"user1_id": user1ID},
			squirrel.Eq{"user2_id": user2ID},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	err = r.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrConversationNotFound
		}
		log.Printf("Error getting conversation for users %d and %d: %v", user1ID, user2ID, err)
		return nil, err
	}

	return &conv, nil
}

func (r *chatRepository) GetConversationByID(ctx context.Context, conversationID int) (*models.Conversation, error) {
	query := psql.Select("id", "user1_id", "user2_id", "created_at").
		From("conversations").
		Where(squirrel.Eq{"id": conversationID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	err = r.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrConversationNotFound
		}
		log.Printf("Error getting conversation %d: %v", conversationID, err)
		return nil, err
	}

	return &conv, nil
}

func (r *chatRepository) CreateConversation(ctx context.Context, user1ID, user2ID int, now time.Time) (*models.Conversation, error) {
	query := psql.Insert("conversations").
		Columns("user1_id", "user2_id", "created_at").
		Values(user1ID, user2ID, now).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	conv := models.Conversation{User1ID: user1ID, User2ID: user2ID, CreatedAt: now}
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&conv.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrConversationExists
		}
		log.Printf("Error creating conversation for users %d and %d: %v", user1ID, user2ID, err)
		return nil, err
	}

	log.Printf("Conversation %d created for users %d and %d", conv.ID, user1ID, user2ID)
	return &conv, nil
}

func (r *chatRepository) GetUserConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	query := psql.Select("id", "user1_id", "user2_id", "created_at").
		From("conversations").
		Where(squirrel.Or{
			squirrel.Eq{"user1_id": userID},
			squirrel.Eq{"user2_id": userID},
		}).
		OrderBy("created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting conversations for user %d: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

func (r *chatRepository) InsertMessage(ctx context.Context, conversationID, senderID int, content string, now time.Time) (*models.ChatMessage, error) {
	query := psql.Insert("chat_messages").
		Columns("conversation_id", "sender_id", "content", "sent_at", "is_read").
		Values(conversationID, senderID, content, now, false).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	msg := models.ChatMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		SentAt:         now,
	}
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&msg.ID)
	if err != nil {
		log.Printf("Error inserting message into conversation %d: %v", conversationID, err)
		return nil, err
	}

	return &msg, nil
}

func (r *chatRepository) GetMessagesByConversation(ctx context.Context, conversationID int) ([]models.ChatMessage, error) {
	query := psql.Select("m.id", "m.conversation_id", "m.sender_id", "u.full_name",
		"m.content", "m.sent_at", "m.is_read", "m.read_at").
		From("chat_messages m").
		Join("users u ON u.id = m.sender_id").
		Where(squirrel.Eq{"m.conversation_id": conversationID}).
		OrderBy("m.sent_at ASC", "m.id ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting messages for conversation %d: %v", conversationID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderName,
			&msg.Content, &msg.SentAt, &msg.IsRead, &msg.ReadAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkMessagesRead flips every unread message in the conversation that was
// not sent by readerID to read in a single statement, and returns the
// affected message IDs plus the distinct senders whose messages were read.
func (r *chatRepository) MarkMessagesRead(ctx context.Context, conversationID, readerID int, now time.Time) ([]int, []int, error) {
	query := psql.Update("chat_messages").
		Set("is_read", true).
		Set("read_at", now).
		Where(squirrel.And{
			squirrel.Eq{"conversation_id": conversationID},
			squirrel.NotEq{"sender_id": readerID},
			squirrel.Eq{"is_read": false},
		}).
		Suffix("RETURNING id, sender_id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error marking messages as read in conversation %d for user %d: %v", conversationID, readerID, err)
		return nil, nil, err
	}
	defer rows.Close()

	var messageIDs []int
	senderSet := make(map[int]struct{})
	for rows.Next() {
		var id, senderID int
		if err := rows.Scan(&id, &senderID); err != nil {
			return nil, nil, err
		}
		messageIDs = append(messageIDs, id)
		senderSet[senderID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var senderIDs []int
	for senderID := range senderSet {
		senderIDs = append(senderIDs, senderID)
	}

	if len(messageIDs) > 0 {
		log.Printf("Marked %d messages as read in conversation %d for user %d", len(messageIDs), conversationID, readerID)
	}
	return messageIDs, senderIDs, nil
}

func (r *chatRepository) UnreadCount(ctx context.Context, userID int) (int, error) {
	query := psql.Select("COUNT(*)").
		From("chat_messages m").
		Join("conversations c ON c.id = m.conversation_id").
		Where(squirrel.And{
			squirrel.Or{
				squirrel.Eq{"c.user1_id": userID},
				squirrel.Eq{"c.user2_id": userID},
			},
			squirrel.NotEq{"m.sender_id": userID},
			squirrel.Eq{"m.is_read": false},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error getting unread count for user %d: %v", userID, err)
		return 0, err
	}

	return count, nil
}

func (r *chatRepository) UnreadCountForConversation(ctx context.Context, conversationID, userID int) (int, error) {
	query := psql.Select("COUNT(*)").
		From("chat_messages").
		Where(squirrel.And{
			squirrel.Eq{"conversation_id": conversationID},
			squirrel.NotEq{"sender_id": userID},
			squirrel.Eq{"is_read": false},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error getting unread count for conversation %d and user %d: %v", conversationID, userID, err)
		return 0, err
	}

	return count, nil
}

func (r *chatRepository) CountMessagesSince(ctx context.Context, userID int, since time.Time) (int, error) {
	query := psql.Select("COUNT(*)").
		From("chat_messages m").
		Join("conversations c ON c.id = m.conversation_id").
		Where(squirrel.And{
			squirrel.Or{
				squirrel.Eq{"c.user1_id": userID},
				squirrel.Eq{"c.user2_id": userID},
			},
			squirrel.NotEq{"m.sender_id": userID},
			squirrel.Gt{"m.sent_at": since},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error counting messages since %v for user %d: %v", since, userID, err)
		return 0, err
	}

	return count, nil
}
