package handlers

import (
	"log"
	"net/http"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching profile for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUserID(w, r); !ok {
		return
	}

	term := r.URL.Query().Get("q")
	if term == "" {
		http.Error(w, "Search term is required", http.StatusBadRequest)
		return
	}

	users, err := h.users.SearchUsers(r.Context(), term)
	if err != nil {
		log.Printf("Error searching users for %q: %v", term, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}
