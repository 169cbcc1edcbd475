package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"walletd/internal/domain/user"
	"walletd/internal/domain/wallet"
	"walletd/internal/shared/auth"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
	maxPasswordLen = 100
)

// AuthHandler issues bearer tokens for the ledger API. Username/password
// only; identity is deliberately minimal because the engine scopes every
// operation by user ID, nothing more.
type AuthHandler struct {
	repo user.Repository
	jwt  *auth.JWT
}

func NewAuthHandler(repo user.Repository, jwt *auth.JWT) *AuthHandler {
	return &AuthHandler{repo: repo, jwt: jwt}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// HandleRegister creates a new user and returns a token for it.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := validateCredentials(req.Username, req.Password); err != nil {
		writeDomainError(w, err)
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("failed to hash password: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "INTERNAL", "", "Internal server error", nil)
		return
	}

	created, err := h.repo.Create(r.Context(), user.CreateParams{
		Username:     req.Username,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateName) {
			writeErrorMessage(w, http.StatusConflict, string(wallet.KindConflict), "DUPLICATE_USERNAME", "Username already taken", nil)
			return
		}
		log.Printf("failed to create user: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "INTERNAL", "", "Internal server error", nil)
		return
	}

	token, err := h.jwt.Generate(created.ID, created.Username)
	if err != nil {
		log.Printf("failed to generate token for user %d: %v", created.ID, err)
		writeErrorMessage(w, http.StatusInternalServerError, "INTERNAL", "", "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: created})
}

// HandleLogin authenticates a user by username and password.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, string(wallet.KindValidation), "MISSING_CREDENTIALS", "Username and password are required", nil)
		return
	}

	found, err := h.repo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeUnauthorized(w)
			return
		}
		log.Printf("failed to look up user: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "INTERNAL", "", "Internal server error", nil)
		return
	}

	if err := auth.VerifyPassword(found.PasswordHash, req.Password); err != nil {
		writeUnauthorized(w)
		return
	}

	token, err := h.jwt.Generate(found.ID, found.Username)
	if err != nil {
		log.Printf("failed to generate token for user %d: %v", found.ID, err)
		writeErrorMessage(w, http.StatusInternalServerError, "INTERNAL", "", "Internal server error", nil)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: found})
}

func validateCredentials(username, password string) error {
	var fields []wallet.FieldError
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		fields = append(fields, wallet.FieldError{
			Field:   "username",
			Message: "username must be between 3 and 50 characters",
		})
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		fields = append(fields, wallet.FieldError{
			Field:   "password",
			Message: "password must be between 6 and 100 characters",
		})
	}
	if len(fields) > 0 {
		return wallet.NewValidationError("INVALID_CREDENTIALS", "invalid registration input", fields...)
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusUnauthorized, "UNAUTHORIZED", "", "Invalid username or password", nil)
}
