package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	conversations, err := h.chat.GetUserConversations(r.Context(), userID)
	if err != nil {
		log.Printf("Error getting conversations for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

func (h *Handler) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	conversationID, err := strconv.Atoi(chi.URLParam(r, "conversation_id"))
	if err != nil || conversationID <= 0 {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	conv, err := h.chat.GetConversationByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !conv.HasParticipant(userID) {
		http.Error(w, "User is not a participant of this conversation", http.StatusForbidden)
		return
	}

	messages, err := h.chat.GetMessagesByConversation(r.Context(), conversationID)
	if err != nil {
		log.Printf("Error getting messages for conversation %d: %v", conversationID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": conversationID,
		"partner_id":      conv.OtherParticipant(userID),
		"messages":        messages,
	})
}

func (h *Handler) SendPrivateMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		ReceiverID int    `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverID <= 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.chat.SendPrivateMessage(r.Context(), senderID, req.ReceiverID, req.Content)
	if err != nil {
		log.Printf("Error sending private message from user %d to user %d: %v", senderID, req.ReceiverID, err)
		writeError(w, err)
		return
	}

	h.notifyPrivateMessage(r.Context(), msg, req.ReceiverID)

	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	conversationID, err := strconv.Atoi(chi.URLParam(r, "conversation_id"))
	if err != nil || conversationID <= 0 {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	messageIDs, senderIDs, err := h.chat.MarkMessagesAsRead(r.Context(), conversationID, userID)
	if err != nil {
		log.Printf("Error marking conversation %d as read for user %d: %v", conversationID, userID, err)
		writeError(w, err)
		return
	}

	h.notifyMessagesRead(r.Context(), conversationID, userID, messageIDs, senderIDs)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": conversationID,
		"marked_read":     len(messageIDs),
	})
}

func (h *Handler) GetUnreadCounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	privateUnread, err := h.chat.GetUnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	groupUnread, err := h.groups.GetUnreadGroupMessageCount(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"private": privateUnread,
		"group":   groupUnread,
		"total":   privateUnread + groupUnread,
	})
}

// GetNewMessageCount backs the dashboard banner: callers pass their last-seen
// timestamp and get the number of messages that arrived after it.
func (h *Handler) GetNewMessageCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
	if err != nil {
		http.Error(w, "Invalid or missing since parameter", http.StatusBadRequest)
		return
	}

	count, err := h.chat.CountMessagesSince(r.Context(), userID, since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"new_messages": count})
}
