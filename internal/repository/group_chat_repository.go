package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"OJTMessenger/server/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GroupChatRepository is the message store for group chats: groups,
// memberships, messages and per-message read receipts.
type GroupChatRepository interface {
	InsertGroupChat(ctx context.Context, name, description string, createdBy int, now time.Time) (*models.GroupChat, error)
	GetGroupChatByID(ctx context.Context, groupChatID int) (*models.GroupChat, error)
	GetUserGroupChats(ctx context.Context, userID int) ([]models.GroupChat, error)
	SoftDeleteGroupChat(ctx context.Context, groupChatID int) error

	InsertMember(ctx context.Context, groupChatID, userID int, isAdmin bool, now time.Time) (*models.GroupChatMember, error)
	DeleteMember(ctx context.Context, groupChatID, userID int) (bool, error)
	IsMember(ctx context.Context, groupChatID, userID int) (bool, error)
	GetMember(ctx context.Context, groupChatID, userID int) (*models.GroupChatMember, error)
	GetMembers(ctx context.Context, groupChatID int) ([]models.GroupChatMember, error)
	AdvanceLastRead(ctx context.Context, groupChatID, userID int, now time.Time) error

	InsertMessage(ctx context.Context, groupChatID, senderID int, content string, now time.Time) (*models.GroupChatMessage, error)
	GetMessages(ctx context.Context, groupChatID, limit int) ([]models.GroupChatMessage, error)
	GetMessagesAfter(ctx context.Context, groupChatID int, after time.Time) ([]models.GroupChatMessage, error)

	InsertReadReceipt(ctx context.Context, messageID, userID int, now time.Time) error
	HasUserReadMessage(ctx context.Context, messageID, userID int) (bool, error)
	MessageReadCount(ctx context.Context, messageID int) (int, error)

	UnreadGroupCount(ctx context.Context, userID int) (int, error)
	UnreadGroupCountForChat(ctx context.Context, groupChatID, userID int) (int, error)
}

type groupChatRepository struct {
	pool *pgxpool.Pool
}

func NewGroupChatRepository(pool *pgxpool.Pool) *groupChatRepository {
	return &groupChatRepository{pool: pool}
}

func (r *groupChatRepository) InsertGroupChat(ctx context.Context, name, description string, createdBy int, now time.Time) (*models.GroupChat, error) {
	query := psql.Insert("group_chats").
		Columns("name", "description", "created_by", "created_at", "is_active").
		Values(name, description, createdBy, now, true).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	group := models.GroupChat{
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		IsActive:    true,
	}
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&group.ID)
	if err != nil {
		log.Printf("Error creating group chat %q: %v", name, err)
		return nil, err
	}

	log.Printf("Group chat %d (%q) created by user %d", group.ID, name, createdBy)
	return &group, nil
}

func (r *groupChatRepository) GetGroupChatByID(ctx context.Context, groupChatID int) (*models.GroupChat, error) {
	query := psql.Select("g.id", "g.name", "g.description", "g.created_by",
		"u.full_name", "g.created_at", "g.is_active").
		From("group_chats g").
		Join("users u ON u.id = g.created_by").
		Where(squirrel.Eq{"g.id": groupChatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var group models.GroupChat
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&group.ID, &group.Name,
		&group.Description, &group.CreatedBy, &group.CreatorName, &group.CreatedAt, &group.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrGroupChatNotFound
		}
		log.Printf("Error getting group chat %d: %v", groupChatID, err)
		return nil, err
	}

	return &group, nil
}

func (r *groupChatRepository) GetUserGroupChats(ctx context.Context, userID int) ([]models.GroupChat, error) {
	query := psql.Select("g.id", "g.name", "g.description", "g.created_by",
		"u.full_name", "g.created_at", "g.is_active").
		From("group_chats g").
		Join("group_chat_members gm ON gm.group_chat_id = g.id").
		Join("users u ON u.id = g.created_by").
		Where(squirrel.And{
			squirrel.Eq{"gm.user_id": userID},
			squirrel.Eq{"g.is_active": true},
		}).
		OrderBy("g.created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting group chats for user %d: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var groups []models.GroupChat
	for rows.Next() {
		var group models.GroupChat
		err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedBy,
			&group.CreatorName, &group.CreatedAt, &group.IsActive)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

func (r *groupChatRepository) SoftDeleteGroupChat(ctx context.Context, groupChatID int) error {
	query := psql.Update("group_chats").
		Set("is_active", false).
		Where(squirrel.Eq{"id": groupChatID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error soft-deleting group chat %d: %v", groupChatID, err)
		return err
	}

	log.Printf("Group chat %d marked inactive", groupChatID)
	return nil
}

func (r *groupChatRepository) InsertMember(ctx context.Context, groupChatID, userID int, isAdmin bool, now time.Time) (*models.GroupChatMember, error) {
	query := psql.Insert("group_chat_members").
		Columns("group_chat_id", "user_id", "joined_at", "is_admin", "last_read_at").
		Values(groupChatID, userID, now, isAdmin, now).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	member := models.GroupChatMember{
		GroupChatID: groupChatID,
		UserID:      userID,
		JoinedAt:    now,
		IsAdmin:     isAdmin,
		LastReadAt:  now,
	}
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&member.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrAlreadyGroupMember
		}
		log.Printf("Error adding member %d to group chat %d: %v", userID, groupChatID, err)
		return nil, err
	}

	log.Printf("User %d added to group chat %d (admin=%v)", userID, groupChatID, isAdmin)
	return &member, nil
}

func (r *groupChatRepository) DeleteMember(ctx context.Context, groupChatID, userID int) (bool, error) {
	query := psql.Delete("group_chat_members").
		Where(squirrel.And{
			squirrel.Eq{"group_chat_id": groupChatID},
			squirrel.Eq{"user_id": userID},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error removing member %d from group chat %d: %v", userID, groupChatID, err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *groupChatRepository) IsMember(ctx context.Context, groupChatID, userID int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1
            FROM group_chat_members
            WHERE group_chat_id = $1 AND user_id = $2
        )
    `

	var exists bool
	err := r.pool.QueryRow(ctx, query, groupChatID, userID).Scan(&exists)
	if err != nil {
		log.Printf("Error checking membership of user %d in group chat %d: %v", userID, groupChatID, err)
		return false, err
	}

	return exists, nil
}

func (r *groupChatRepository) GetMember(ctx context.Context, groupChatID, userID int) (*models.GroupChatMember, error) {
	query := psql.Select("id", "group_chat_id", "user_id", "joined_at", "is_admin", "last_read_at").
		From("group_chat_members").
		Where(squirrel.And{
			squirrel.Eq{"group_chat_id": groupChatID},
			squirrel.Eq{"user_id": userID},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var member models.GroupChatMember
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&member.ID, &member.GroupChatID,
		&member.UserID, &member.JoinedAt, &member.IsAdmin, &member.LastReadAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotGroupMember
		}
		log.Printf("Error getting member %d of group chat %d: %v", userID, groupChatID, err)
		return nil, err
	}

	return &member, nil
}

func (r *groupChatRepository) GetMembers(ctx context.Context, groupChatID int) ([]models.GroupChatMember, error) {
	query := psql.Select("gm.id", "gm.group_chat_id", "gm.user_id", "u.full_name",
		"gm.joined_at", "gm.is_admin", "gm.last_read_at").
		From("group_chat_members gm").
		Join("users u ON u.id = gm.user_id").
		Where(squirrel.Eq{"gm.group_chat_id": groupChatID}).
		OrderBy("gm.joined_at ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting members of group chat %d: %v", groupChatID, err)
		return nil, err
	}
	defer rows.Close()

	var members []models.GroupChatMember
	for rows.Next() {
		var member models.GroupChatMember
		err := rows.Scan(&member.ID, &member.GroupChatID, &member.UserID, &member.UserName,
			&member.JoinedAt, &member.IsAdmin, &member.LastReadAt)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// AdvanceLastRead moves the member's read cursor forward. The cursor never
// moves backwards, so a stale caller cannot resurrect unread counts.
func (r *groupChatRepository) AdvanceLastRead(ctx context.Context, groupChatID, userID int, now time.Time) error {
	query := psql.Update("group_chat_members").
		Set("last_read_at", now).
		Where(squirrel.And{
			squirrel.Eq{"group_chat_id": groupChatID},
			squirrel.Eq{"user_id": userID},
			squirrel.Lt{"last_read_at": now},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error advancing read cursor for user %d in group chat %d: %v", userID, groupChatID, err)
		return err
	}

	return nil
}

func (r *groupChatRepository) InsertMessage(ctx context.Context, groupChatID, senderID int, content string, now time.Time) (*models.GroupChatMessage, error) {
	query := psql.Insert("group_chat_messages").
		Columns("group_chat_id", "sender_id", "content", "created_at").
		Values(groupChatID, senderID, content, now).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	msg := models.GroupChatMessage{
		GroupChatID: groupChatID,
		SenderID:    senderID,
		Content:     content,
		CreatedAt:   now,
	}
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&msg.ID)
	if err != nil {
		log.Printf("Error inserting message into group chat %d: %v", groupChatID, err)
		return nil, err
	}

	return &msg, nil
}

// GetMessages returns the most recent limit messages, newest first. Private
// conversations return full history oldest-first; this asymmetry is
// deliberate and mirrors how the two views are consumed.
func (r *groupChatRepository) GetMessages(ctx context.Context, groupChatID, limit int) ([]models.GroupChatMessage, error) {
	query := psql.Select("m.id", "m.group_chat_id", "m.sender_id", "u.full_name",
		"m.content", "m.created_at").
		From("group_chat_messages m").
		Join("users u ON u.id = m.sender_id").
		Where(squirrel.Eq{"m.group_chat_id": groupChatID}).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting messages for group chat %d: %v", groupChatID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []models.GroupChatMessage
	for rows.Next() {
		var msg models.GroupChatMessage
		err := rows.Scan(&msg.ID, &msg.GroupChatID, &msg.SenderID, &msg.SenderName,
			&msg.Content, &msg.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (r *groupChatRepository) GetMessagesAfter(ctx context.Context, groupChatID int, after time.Time) ([]models.GroupChatMessage, error) {
	query := psql.Select("id", "group_chat_id", "sender_id", "content", "created_at").
		From("group_chat_messages").
		Where(squirrel.And{
			squirrel.Eq{"group_chat_id": groupChatID},
			squirrel.Gt{"created_at": after},
		}).
		OrderBy("created_at ASC", "id ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting messages after %v for group chat %d: %v", after, groupChatID, err)
		return nil, err
	}
	defer rows.Close()

	var messages []models.GroupChatMessage
	for rows.Next() {
		var msg models.GroupChatMessage
		err := rows.Scan(&msg.ID, &msg.GroupChatID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// InsertReadReceipt records that userID has read messageID. Inserting the
// same pair twice is a no-op.
func (r *groupChatRepository) InsertReadReceipt(ctx context.Context, messageID, userID int, now time.Time) error {
	query := psql.Insert("group_chat_message_reads").
		Columns("message_id", "user_id", "read_at").
		Values(messageID, userID, now).
		Suffix("ON CONFLICT (message_id, user_id) DO NOTHING")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error adding read receipt for message %d by user %d: %v", messageID, userID, err)
		return err
	}

	return nil
}

func (r *groupChatRepository) HasUserReadMessage(ctx context.Context, messageID, userID int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1
            FROM group_chat_message_reads
            WHERE message_id = $1 AND user_id = $2
        )
    `

	var exists bool
	err := r.pool.QueryRow(ctx, query, messageID, userID).Scan(&exists)
	if err != nil {
		log.Printf("Error checking read receipt for message %d by user %d: %v", messageID, userID, err)
		return false, err
	}

	return exists, nil
}

func (r *groupChatRepository) MessageReadCount(ctx context.Context, messageID int) (int, error) {
	query := psql.Select("COUNT(*)").
		From("group_chat_message_reads").
		Where(squirrel.Eq{"message_id": messageID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error counting readers of message %d: %v", messageID, err)
		return 0, err
	}

	return count, nil
}

func (r *groupChatRepository) UnreadGroupCount(ctx context.Context, userID int) (int, error) {
	query := psql.Select("COUNT(*)").
		From("group_chat_messages m").
		Join("group_chat_members gm ON gm.group_chat_id = m.group_chat_id").
		Join("group_chats g ON g.id = m.group_chat_id").
		Where(squirrel.And{
			squirrel.Eq{"gm.user_id": userID},
			squirrel.NotEq{"m.sender_id": userID},
			squirrel.Expr("m.created_at > gm.last_read_at"),
			squirrel.Eq{"g.is_active": true},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error getting unread group count for user %d: %v", userID, err)
		return 0, err
	}

	return count, nil
}

func (r *groupChatRepository) UnreadGroupCountForChat(ctx context.Context, groupChatID, userID int) (int, error) {
	query := psql.Select("COUNT(*)").
		From("group_chat_messages m").
		Join("group_chat_members gm ON gm.group_chat_id = m.group_chat_id AND gm.user_id = ?", userID).
		Where(squirrel.And{
			squirrel.Eq{"m.group_chat_id": groupChatID},
			squirrel.NotEq{"m.sender_id": userID},
			squirrel.Expr("m.created_at > gm.last_read_at"),
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error getting unread count for group chat %d and user %d: %v", groupChatID, userID, err)
		return 0, err
	}

	return count, nil
}
