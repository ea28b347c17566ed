package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"OJTMessenger/server/internal/models"

	"github.com/go-chi/chi/v5"
)

func groupIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	groupID, err := strconv.Atoi(chi.URLParam(r, "group_id"))
	if err != nil || groupID <= 0 {
		http.Error(w, "Invalid group chat ID", http.StatusBadRequest)
		return 0, false
	}
	return groupID, true
}

// requireMember gates member-only group operations with a 403, never a 404.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request, groupID, userID int) bool {
	isMember, err := h.groups.IsMember(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if !isMember {
		writeError(w, models.ErrNotGroupMember)
		return false
	}
	return true
}

func (h *Handler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.groups.CreateGroupChat(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		log.Printf("Error creating group chat for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (h *Handler) GetUserGroupChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groups, err := h.groups.GetUserGroupChats(r.Context(), userID)
	if err != nil {
		log.Printf("Error getting group chats for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	type groupWithUnread struct {
		models.GroupChat
		UnreadCount int `json:"unread_count"`
	}

	result := make([]groupWithUnread, 0, len(groups))
	for _, group := range groups {
		unread, err := h.groups.GetUnreadGroupMessageCountForChat(r.Context(), group.ID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		result = append(result, groupWithUnread{GroupChat: group, UnreadCount: unread})
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetGroupChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if !h.requireMember(w, r, groupID, userID) {
		return
	}

	group, err := h.groups.GetGroupChatByID(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *Handler) DeleteGroupChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if err := h.groups.DeleteGroupChat(r.Context(), groupID, userID); err != nil {
		log.Printf("Error deleting group chat %d by user %d: %v", groupID, userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Group chat deleted"})
}

func (h *Handler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if !h.requireMember(w, r, groupID, userID) {
		return
	}

	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.groups.AddMember(r.Context(), groupID, req.UserID); err != nil {
		log.Printf("Error adding member %d to group chat %d: %v", req.UserID, groupID, err)
		writeError(w, err)
		return
	}

	h.notifyGroupMembership(r.Context(), groupID, req.UserID, "member_added")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Member added"})
}

func (h *Handler) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if !h.requireMember(w, r, groupID, userID) {
		return
	}

	memberID, err := strconv.Atoi(chi.URLParam(r, "user_id"))
	if err != nil || memberID <= 0 {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	removed, err := h.groups.RemoveMember(r.Context(), groupID, memberID)
	if err != nil {
		log.Printf("Error removing member %d from group chat %d: %v", memberID, groupID, err)
		writeError(w, err)
		return
	}
	if !removed {
		writeError(w, models.ErrNotGroupMember)
		return
	}

	h.notifyGroupMembership(r.Context(), groupID, memberID, "member_removed")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Member removed"})
}

func (h *Handler) GetGroupMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if !h.requireMember(w, r, groupID, userID) {
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 0
	}

	messages, err := h.groups.GetGroupChatMessages(r.Context(), groupID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) SendGroupMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.groups.SendMessage(r.Context(), groupID, userID, req.Content)
	if err != nil {
		log.Printf("Error sending message to group chat %d by user %d: %v", groupID, userID, err)
		writeError(w, err)
		return
	}

	h.notifyGroupMessage(r.Context(), msg)

	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) MarkGroupRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if err := h.groups.MarkGroupChatAsRead(r.Context(), groupID, userID); err != nil {
		log.Printf("Error marking group chat %d as read for user %d: %v", groupID, userID, err)
		writeError(w, err)
		return
	}

	h.notifyGroupRead(r.Context(), groupID, userID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Group chat marked as read"})
}

// GetMessageReadInfo backs the "seen by N members" affordance.
func (h *Handler) GetMessageReadInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	groupID, ok := groupIDParam(w, r)
	if !ok {
		return
	}

	if !h.requireMember(w, r, groupID, userID) {
		return
	}

	messageID, err := strconv.Atoi(chi.URLParam(r, "message_id"))
	if err != nil || messageID <= 0 {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	readCount, err := h.groups.GetMessageReadCount(r.Context(), messageID)
	if err != nil {
		writeError(w, err)
		return
	}

	hasRead, err := h.groups.HasUserReadMessage(r.Context(), messageID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message_id": messageID,
		"read_count": readCount,
		"has_read":   hasRead,
	})
}
