package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"webwatch/internal/auth"
	"webwatch/internal/claim"
	"webwatch/internal/email"
	"webwatch/internal/middleware"
	"webwatch/internal/model"
	"webwatch/internal/store"
	"webwatch/internal/websocket"
)

const minPasswordLength = 8

type UserHandler struct {
	users     *store.UserStore
	engine    *claim.Engine
	mailer    *email.Client
	hub       *websocket.Hub
	jwtSecret []byte
	logger    *slog.Logger
}

func NewUserHandler(us *store.UserStore, engine *claim.Engine, mailer *email.Client, hub *websocket.Hub, jwtSecret []byte, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:     us,
		engine:    engine,
		mailer:    mailer,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User                *model.User `json:"user"`
	AccessToken         string      `json:"access_token"`
	RefreshToken        string      `json:"refresh_token"`
	WebsitesTransferred int64       `json:"websites_transferred"`
}

// Signup creates an account. A valid visitor token in the X-Visitor-Token
// header is claimed in the same request, carrying its guest websites into
// the new account.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		respondError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	user, err := h.users.Create(req.Name, req.Email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			respondError(w, http.StatusUnprocessableEntity, "An account with this email already exists")
			return
		}
		h.logger.Error("create user", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	if h.mailer.Configured() {
		go func() {
			if err := h.mailer.SendWelcome(user.Email, user.Name); err != nil {
				h.logger.Error("send welcome email", "error", err)
			}
		}()
	}

	h.issueSession(w, r, user, http.StatusCreated, "Account created")
}

// Login authenticates a user. Like signup, a visitor token presented with
// the request is claimed into the account.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("get user by email", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	h.issueSession(w, r, user, http.StatusOK, "Logged in")
}

// issueSession claims an attached visitor token, mints the access/refresh
// pair, persists the refresh token, and writes the auth response.
func (h *UserHandler) issueSession(w http.ResponseWriter, r *http.Request, user *model.User, code int, message string) {
	var transferred int64
	if token := r.Header.Get(middleware.VisitorTokenHeader); token != "" {
		n, err := h.engine.ClaimToken(token, user.ID)
		switch {
		case err == nil:
			transferred = n
			if transferred > 0 {
				h.hub.Broadcast(websocket.OwnershipTransferred(transferred))
			}
		case errors.Is(err, store.ErrTokenClaimed),
			errors.Is(err, store.ErrTokenExpired),
			errors.Is(err, store.ErrNotFound):
			// A dead token does not block signup or login
			h.logger.Info("visitor token not claimable", "user_id", user.ID, "reason", err)
		default:
			h.logger.Error("claim visitor token", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to transfer guest websites")
			return
		}
	}

	access, err := auth.GenerateToken(user.ID, auth.TypeAccess, h.jwtSecret, auth.AccessTokenTTL)
	if err != nil {
		h.logger.Error("generate access token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	refresh, err := auth.GenerateToken(user.ID, auth.TypeRefresh, h.jwtSecret, auth.RefreshTokenTTL)
	if err != nil {
		h.logger.Error("generate refresh token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	if err := h.users.SetRefreshToken(user.ID, refresh); err != nil {
		h.logger.Error("store refresh token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	respond(w, code, message, authResponse{
		User:                user,
		AccessToken:         access,
		RefreshToken:        refresh,
		WebsitesTransferred: transferred,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates the access/refresh pair. The presented refresh token
// must be the one currently stored for the user; a token replaced by a
// later rotation is rejected.
func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	claims, err := auth.ParseToken(req.RefreshToken, auth.TypeRefresh, h.jwtSecret)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	user, err := h.users.GetByID(claims.UserID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	if user.RefreshToken == nil || *user.RefreshToken != req.RefreshToken {
		respondError(w, http.StatusUnauthorized, "Refresh token has been revoked")
		return
	}

	access, err := auth.GenerateToken(user.ID, auth.TypeAccess, h.jwtSecret, auth.AccessTokenTTL)
	if err != nil {
		h.logger.Error("generate access token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to refresh session")
		return
	}
	refresh, err := auth.GenerateToken(user.ID, auth.TypeRefresh, h.jwtSecret, auth.RefreshTokenTTL)
	if err != nil {
		h.logger.Error("generate refresh token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to refresh session")
		return
	}
	if err := h.users.SetRefreshToken(user.ID, refresh); err != nil {
		h.logger.Error("store refresh token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to refresh session")
		return
	}

	respond(w, http.StatusOK, "Session refreshed", map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}
