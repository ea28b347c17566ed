package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"OJTMessenger/server/internal/appMiddleware"
	"OJTMessenger/server/internal/models"
	"OJTMessenger/server/internal/pool"
	"OJTMessenger/server/internal/services"
)

type Handler struct {
	users     services.UserService
	chat      services.ChatService
	groups    services.GroupChatService
	pool      *pool.Pool
	jwtSecret []byte
}

func New(users services.UserService, chat services.ChatService, groups services.GroupChatService, clientPool *pool.Pool, jwtSecret []byte) *Handler {
	return &Handler{
		users:     users,
		chat:      chat,
		groups:    groups,
		pool:      clientPool,
		jwtSecret: jwtSecret,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses: validation
// 400, not-found 404, membership/creator 403, duplicates 409, the rest 500.
func writeError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"field":   validation.Field,
			"message": validation.Message,
		})
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrConversationNotFound),
		errors.Is(err, models.ErrGroupChatNotFound),
		errors.Is(err, models.ErrMessageNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, models.ErrUserNotParticipant),
		errors.Is(err, models.ErrNotGroupMember),
		errors.Is(err, models.ErrNotGroupCreator):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, models.ErrAlreadyGroupMember),
		errors.Is(err, models.ErrUserExists):
		status = http.StatusConflict
		message = err.Error()
	}

	writeJSON(w, status, map[string]string{"message": message})
}

func currentUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}
