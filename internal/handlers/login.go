package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"OJTMessenger/server/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, models.ErrUserNotFound) {
			log.Printf("Login failed for %s: %v", req.Email, err)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "Invalid email or password",
		})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   user.ID,
		"full_name": user.FullName,
		"role":      user.Role,
		"exp":       time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.Printf("Error creating token for user %d: %v", user.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "Token creation error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}
