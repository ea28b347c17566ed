package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Invalid register request: %v", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	userID, err := h.users.Register(r.Context(), req.FullName, req.Email, req.Password, req.Role)
	if err != nil {
		log.Printf("Error registering user %s: %v", req.Email, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created",
		"user_id": userID,
	})
}
