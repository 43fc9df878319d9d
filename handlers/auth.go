package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixelharbor/imageconvbackend/models"
	"github.com/pixelharbor/imageconvbackend/repository"
)

const jwtExpirationHours = 24

// AuthHandler issues bearer tokens. Session mechanics beyond this thin
// login endpoint are out of scope.
type AuthHandler struct {
	UserRepo  repository.UserRepository
	JWTSecret []byte
}

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}

	user, err := h.UserRepo.GetByUsername(payload.Username)
	if err != nil || !user.CheckPassword(payload.Password) {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "invalid username or password")
		return
	}

	expirationTime := time.Now().Add(jwtExpirationHours * time.Hour)
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(user.ID),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.JWTSecret)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expirationTime,
	})
}
