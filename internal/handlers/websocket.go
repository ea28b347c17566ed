package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"OJTMessenger/server/internal/appMiddleware"
	"OJTMessenger/server/internal/models"
	"OJTMessenger/server/internal/pool"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler is the realtime gateway. The client authenticates with a
// token query parameter, receives its combined unread badge immediately, and
// may issue send/mark-read commands over the socket. Every command persists
// through the services first; pushes follow the durable write.
func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	userID, err := appMiddleware.ParseToken(tokenStr, h.jwtSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("User %d connected to WebSocket", userID)

	client := h.pool.AddClient(userID, conn)
	defer h.pool.RemoveClient(client)

	h.pushBadge(r.Context(), userID)

	for {
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}

		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		switch msg.Event {
		case "send_private_message":
			var req struct {
				ReceiverID int    `json:"receiver_id"`
				Content    string `json:"content"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil || req.ReceiverID <= 0 {
				h.sendError(client, "invalid send_private_message request")
				continue
			}

			message, err := h.chat.SendPrivateMessage(r.Context(), userID, req.ReceiverID, req.Content)
			if err != nil {
				log.Printf("Error sending private message from user %d: %v", userID, err)
				h.sendError(client, err.Error())
				continue
			}

			h.notifyPrivateMessage(r.Context(), message, req.ReceiverID)
			h.pool.SendToUser(userID, "message_sent", map[string]interface{}{
				"message_id":      message.ID,
				"conversation_id": message.ConversationID,
				"is_read":         false,
			})

		case "send_group_message":
			var req struct {
				GroupChatID int    `json:"group_chat_id"`
				Content     string `json:"content"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil || req.GroupChatID <= 0 {
				h.sendError(client, "invalid send_group_message request")
				continue
			}

			message, err := h.groups.SendMessage(r.Context(), req.GroupChatID, userID, req.Content)
			if err != nil {
				log.Printf("Error sending group message from user %d: %v", userID, err)
				h.sendError(client, err.Error())
				continue
			}

			h.notifyGroupMessage(r.Context(), message)
			h.pool.SendToUser(userID, "group_message_sent", map[string]interface{}{
				"message_id":    message.ID,
				"group_chat_id": message.GroupChatID,
			})

		case "mark_private_read":
			var req struct {
				ConversationID int `json:"conversation_id"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil || req.ConversationID <= 0 {
				h.sendError(client, "invalid mark_private_read request")
				continue
			}

			messageIDs, senderIDs, err := h.chat.MarkMessagesAsRead(r.Context(), req.ConversationID, userID)
			if err != nil {
				log.Printf("Error marking conversation %d as read for user %d: %v", req.ConversationID, userID, err)
				h.sendError(client, err.Error())
				continue
			}

			h.notifyMessagesRead(r.Context(), req.ConversationID, userID, messageIDs, senderIDs)

		case "mark_group_read":
			var req struct {
				GroupChatID int `json:"group_chat_id"`
			}
			if err := json.Unmarshal(msg.Data, &req); err != nil || req.GroupChatID <= 0 {
				h.sendError(client, "invalid mark_group_read request")
				continue
			}

			if err := h.groups.MarkGroupChatAsRead(r.Context(), req.GroupChatID, userID); err != nil {
				log.Printf("Error marking group chat %d as read for user %d: %v", req.GroupChatID, userID, err)
				h.sendError(client, err.Error())
				continue
			}

			h.notifyGroupRead(r.Context(), req.GroupChatID, userID)

		default:
			log.Printf("Unknown event %q from user %d", msg.Event, userID)
		}
	}
}

// sendError acks a rejected command on the issuing connection. It goes
// through the pool's locked write path: the read loop must never write the
// conn directly while pushes to the same user run on other goroutines.
func (h *Handler) sendError(client *pool.Client, message string) {
	h.pool.SendToClient(client, "error", map[string]string{"message": message})
}

// pushBadge sends the caller's combined private+group unread total. Push
// failures are non-fatal; the badge refreshes on next page load anyway.
func (h *Handler) pushBadge(ctx context.Context, userID int) {
	privateUnread, err := h.chat.GetUnreadCount(ctx, userID)
	if err != nil {
		log.Printf("Error getting unread count for user %d: %v", userID, err)
		return
	}

	groupUnread, err := h.groups.GetUnreadGroupMessageCount(ctx, userID)
	if err != nil {
		log.Printf("Error getting unread group count for user %d: %v", userID, err)
		return
	}

	h.pool.SendToUser(userID, "unread_badge", privateUnread+groupUnread)
}

func (h *Handler) displayName(ctx context.Context, userID int) string {
	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.FullName
}

func (h *Handler) notifyPrivateMessage(ctx context.Context, msg *models.ChatMessage, receiverID int) {
	senderName := msg.SenderName
	if senderName == "" {
		senderName = h.displayName(ctx, msg.SenderID)
	}

	h.pool.SendToUser(receiverID, "private_message", map[string]interface{}{
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"sender_name":     senderName,
		"content":         msg.Content,
		"sent_at":         msg.SentAt.UTC().Format(time.RFC3339),
		"is_read":         false,
	})
	h.pushBadge(ctx, receiverID)
}

func (h *Handler) notifyMessagesRead(ctx context.Context, conversationID, readerID int, messageIDs, senderIDs []int) {
	if len(messageIDs) > 0 {
		eventData := map[string]interface{}{
			"conversation_id": conversationID,
			"message_ids":     messageIDs,
			"read_by":         readerID,
			"read_by_name":    h.displayName(ctx, readerID),
			"read_at":         time.Now().UTC().Format(time.RFC3339),
		}
		for _, senderID := range senderIDs {
			if senderID == readerID {
				continue
			}
			h.pool.SendToUser(senderID, "private_messages_read", eventData)
		}
	}

	h.pushBadge(ctx, readerID)
}

func (h *Handler) notifyGroupMessage(ctx context.Context, msg *models.GroupChatMessage) {
	members, err := h.groups.GetGroupChatMembers(ctx, msg.GroupChatID)
	if err != nil {
		log.Printf("Error getting members of group chat %d: %v", msg.GroupChatID, err)
		return
	}

	senderName := msg.SenderName
	if senderName == "" {
		senderName = h.displayName(ctx, msg.SenderID)
	}

	eventData := map[string]interface{}{
		"message_id":    msg.ID,
		"group_chat_id": msg.GroupChatID,
		"sender_id":     msg.SenderID,
		"sender_name":   senderName,
		"content":       msg.Content,
		"sent_at":       msg.CreatedAt.UTC().Format(time.RFC3339),
	}

	for _, member := range members {
		if member.UserID == msg.SenderID {
			continue
		}
		h.pool.SendToUser(member.UserID, "group_message", eventData)
		h.pushBadge(ctx, member.UserID)
	}
}

func (h *Handler) notifyGroupRead(ctx context.Context, groupChatID, readerID int) {
	members, err := h.groups.GetGroupChatMembers(ctx, groupChatID)
	if err != nil {
		log.Printf("Error getting members of group chat %d: %v", groupChatID, err)
		return
	}

	eventData := map[string]interface{}{
		"group_chat_id": groupChatID,
		"read_by":       readerID,
		"read_by_name":  h.displayName(ctx, readerID),
		"read_at":       time.Now().UTC().Format(time.RFC3339),
	}

	for _, member := range members {
		if member.UserID == readerID {
			continue
		}
		h.pool.SendToUser(member.UserID, "group_messages_read", eventData)
	}

	h.pushBadge(ctx, readerID)
}

func (h *Handler) notifyGroupMembership(ctx context.Context, groupChatID, affectedUserID int, event string) {
	members, err := h.groups.GetGroupChatMembers(ctx, groupChatID)
	if err != nil {
		log.Printf("Error getting members of group chat %d: %v", groupChatID, err)
		return
	}

	eventData := map[string]interface{}{
		"group_chat_id": groupChatID,
		"user_id":       affectedUserID,
		"user_name":     h.displayName(ctx, affectedUserID),
	}

	for _, member := range members {
		h.pool.SendToUser(member.UserID, event, eventData)
	}
	if event == "member_removed" {
		h.pool.SendToUser(affectedUserID, event, eventData)
	}
}
