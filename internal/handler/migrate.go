package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"webwatch/internal/auth"
	"webwatch/internal/claim"
	"webwatch/internal/middleware"
	"webwatch/internal/store"
	"webwatch/internal/websocket"
)

type MigrateHandler struct {
	engine *claim.Engine
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMigrateHandler(engine *claim.Engine, hub *websocket.Hub, logger *slog.Logger) *MigrateHandler {
	return &MigrateHandler{engine: engine, hub: hub, logger: logger}
}

type migrateRequest struct {
	Websites []claim.Item `json:"websites"`
}

// Migrate carries a client-submitted list of guest websites into the
// authenticated user's account. A visitor token presented alongside is
// claimed first, so its server-persisted sites transfer in bulk and the
// token leaves the anonymous state. The operation is idempotent per item:
// resubmitting a list the user already owns returns the same records.
func (h *MigrateHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req migrateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Websites) == 0 {
		respondError(w, http.StatusBadRequest, "No websites to migrate")
		return
	}
	for i := range req.Websites {
		item := &req.Websites[i]
		item.URL = strings.TrimSpace(item.URL)
		u, err := url.Parse(item.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			respondError(w, http.StatusBadRequest, "Each website needs a valid http or https URL")
			return
		}
		if strings.TrimSpace(item.Name) == "" {
			item.Name = u.Host
		}
	}

	var transferred int64
	if token := r.Header.Get(middleware.VisitorTokenHeader); token != "" {
		n, err := h.engine.ClaimToken(token, userID)
		switch {
		case err == nil:
			transferred = n
			if transferred > 0 {
				h.hub.Broadcast(websocket.OwnershipTransferred(transferred))
			}
		case errors.Is(err, store.ErrTokenClaimed),
			errors.Is(err, store.ErrTokenExpired),
			errors.Is(err, store.ErrNotFound):
			// A dead token does not block the item-level migration
			h.logger.Info("visitor token not claimable", "user_id", userID, "reason", err)
		default:
			h.logger.Error("claim visitor token", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to transfer guest websites")
			return
		}
	}

	migrated, err := h.engine.Migrate(userID, req.Websites)
	if err != nil {
		h.logger.Error("migrate websites", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to migrate websites")
		return
	}

	respond(w, http.StatusOK, "Websites migrated", map[string]any{
		"websites":             migrated,
		"migrated":             len(migrated),
		"websites_transferred": transferred,
	})
}
