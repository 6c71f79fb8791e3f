package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"webwatch/internal/middleware"
	"webwatch/internal/model"
	"webwatch/internal/store"
)

type VisitorTokenHandler struct {
	tokens   *store.VisitorTokenStore
	websites *store.WebsiteStore
	logger   *slog.Logger
}

func NewVisitorTokenHandler(ts *store.VisitorTokenStore, ws *store.WebsiteStore, logger *slog.Logger) *VisitorTokenHandler {
	return &VisitorTokenHandler{tokens: ts, websites: ws, logger: logger}
}

// Issue mints a fresh anonymous token for the caller's IP. The store
// enforces the per-IP issuance limit.
func (h *VisitorTokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ip := middleware.RealIP(r)

	t, err := h.tokens.Issue(ip)
	if err != nil {
		if errors.Is(err, store.ErrRateLimited) {
			respondError(w, http.StatusTooManyRequests, "Too many tokens created from this address. Please try again later.")
			return
		}
		h.logger.Error("issue visitor token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create visitor token")
		return
	}

	respond(w, http.StatusCreated, "Visitor token created", t)
}

// Validate reports whether a token is still usable. Reading it is the lazy
// expiry point, so an overdue anonymous token comes back already expired.
func (h *VisitorTokenHandler) Validate(w http.ResponseWriter, r *http.Request) {
	value := r.PathValue("token")

	t, err := h.tokens.GetByToken(value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Invalid visitor token")
			return
		}
		h.logger.Error("get visitor token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to validate visitor token")
		return
	}

	if t.Status == model.TokenExpired {
		respondErrorExtra(w, http.StatusGone, "Visitor token has expired. Please create a new one.", map[string]any{"isExpired": true})
		return
	}

	respond(w, http.StatusOK, "Visitor token is valid", t)
}

type tokenStats struct {
	Token        *model.VisitorToken `json:"token"`
	WebsiteCount int                 `json:"website_count"`
	DaysLeft     *int                `json:"days_left,omitempty"`
}

// Stats returns a token's lifecycle state plus how many websites it holds
// and, for anonymous tokens, how long until it expires.
func (h *VisitorTokenHandler) Stats(w http.ResponseWriter, r *http.Request) {
	value := r.PathValue("token")

	t, err := h.tokens.GetByToken(value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Invalid visitor token")
			return
		}
		h.logger.Error("get visitor token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load token stats")
		return
	}

	count, err := h.websites.CountByToken(t.Token)
	if err != nil {
		h.logger.Error("count token websites", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load token stats")
		return
	}

	stats := tokenStats{Token: t, WebsiteCount: count}
	if t.Status == model.TokenAnonymous && t.ExpiresAt != nil {
		days := int(time.Until(*t.ExpiresAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		stats.DaysLeft = &days
	}

	respond(w, http.StatusOK, "Token stats", stats)
}
