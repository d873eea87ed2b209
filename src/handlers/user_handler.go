package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/security"
	"github.com/username/tradefolio/backend/src/store"
	"github.com/username/tradefolio/backend/src/utils"
)

// UserHandler is the thin identity surface: it issues the user ids the
// rest of the system trusts. No profile management, no email flows.
type UserHandler struct {
	authService *security.AuthService
	users       *store.SQLiteUserStore
}

func NewUserHandler(authService *security.AuthService, users *store.SQLiteUserStore) *UserHandler {
	return &UserHandler{
		authService: authService,
		users:       users,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 8 {
		utils.SendJSONError(w, "username required and password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.L.Error("Error hashing password", "error", err)
		utils.SendJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	userID, err := h.users.Create(r.Context(), req.Username, hash)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			utils.SendJSONError(w, "username already taken", http.StatusConflict)
			return
		}
		logger.L.Error("Error creating user", "username", req.Username, "error", err)
		utils.SendJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	logger.L.Info("User registered", "userID", userID, "username", req.Username)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"id": userID, "username": req.Username})
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, hash, err := h.users.PasswordHashByUsername(r.Context(), req.Username)
	if err != nil {
		logger.L.Error("Error fetching user for login", "username", req.Username, "error", err)
		utils.SendJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if userID == 0 || h.authService.CompareHashAndPassword(hash, req.Password) != nil {
		utils.SendJSONError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(strconv.FormatInt(userID, 10))
	if err != nil {
		logger.L.Error("Error generating token", "userID", userID, "error", err)
		utils.SendJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"token": token, "user_id": userID})
}
