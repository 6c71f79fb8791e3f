package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"webwatch/internal/auth"
	"webwatch/internal/model"
	"webwatch/internal/monitor"
	"webwatch/internal/probe"
	"webwatch/internal/store"
	"webwatch/internal/websocket"
)

type WebsiteHandler struct {
	websites *store.WebsiteStore
	checker  *probe.Checker
	monitor  *monitor.Monitor
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewWebsiteHandler(ws *store.WebsiteStore, checker *probe.Checker, mon *monitor.Monitor, hub *websocket.Hub, logger *slog.Logger) *WebsiteHandler {
	return &WebsiteHandler{websites: ws, checker: checker, monitor: mon, hub: hub, logger: logger}
}

type websiteRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (req *websiteRequest) validate() string {
	req.URL = strings.TrimSpace(req.URL)
	req.Name = strings.TrimSpace(req.Name)
	if req.URL == "" {
		return "URL is required"
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "URL must be a valid http or https address"
	}
	if req.Name == "" {
		req.Name = u.Host
	}
	return ""
}

// GuestCreate probes a URL and, when the caller presented a visitor token,
// persists the result under it. Without a token the probe result is
// returned but nothing is stored, so the landing page can offer a one-off
// check before the client bothers to request a token.
func (h *WebsiteHandler) GuestCreate(w http.ResponseWriter, r *http.Request) {
	var req websiteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	res := h.checker.Probe(r.Context(), req.URL)

	t, ok := auth.VisitorToken(r.Context())
	if !ok {
		respond(w, http.StatusOK, "Check complete", map[string]any{
			"url":              req.URL,
			"status":           res.Status,
			"response_time_ms": res.ResponseTimeMs,
			"ssl":              res.TLS,
			"seo":              res.SEO,
		})
		return
	}

	site, err := h.persistProbed(req, model.OwnerVisitor(t.Token), model.OwnerGuest, res)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			respondError(w, http.StatusUnprocessableEntity, "You are already monitoring this website")
			return
		}
		h.logger.Error("create guest website", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to save website")
		return
	}

	respond(w, http.StatusCreated, "Website added", site)
}

// Create registers a website under the authenticated user. The URL is
// probed first and must answer; dead URLs are rejected rather than stored.
func (h *WebsiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req websiteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	res := h.checker.Probe(r.Context(), req.URL)
	if res.Status != model.StatusOnline {
		respondError(w, http.StatusUnprocessableEntity, "Website is not reachable. Please check the URL and try again.")
		return
	}

	site, err := h.persistProbed(req, model.OwnerUser(userID), model.OwnerActive, res)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			respondError(w, http.StatusUnprocessableEntity, "You are already monitoring this website")
			return
		}
		h.logger.Error("create website", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to save website")
		return
	}

	respond(w, http.StatusCreated, "Website added", site)
}

func (h *WebsiteHandler) persistProbed(req websiteRequest, owner model.Owner, ownerStatus string, res probe.Result) (*model.Website, error) {
	site, err := h.websites.Create(uuid.NewString(), req.URL, req.Name, owner, ownerStatus)
	if err != nil {
		return nil, err
	}
	if err := h.websites.UpdateProbeResult(site.ID, res.Status, res.ResponseTimeMs, res.TLS, res.SEO); err != nil {
		return nil, err
	}
	h.hub.Broadcast(websocket.StatusChanged(site.ID, site.URL, res.Status, res.ResponseTimeMs))
	return h.websites.GetByID(site.ID)
}

// GuestList returns the websites owned by the caller's visitor token.
func (h *WebsiteHandler) GuestList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r)
}

// List returns the authenticated user's websites.
func (h *WebsiteHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r)
}

func (h *WebsiteHandler) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.Identity(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	sites, err := h.websites.ListByOwner(owner)
	if err != nil {
		h.logger.Error("list websites", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list websites")
		return
	}
	if sites == nil {
		sites = []model.Website{}
	}
	respond(w, http.StatusOK, "Websites retrieved", sites)
}

// GuestDelete removes a guest-owned website.
func (h *WebsiteHandler) GuestDelete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r)
}

// Delete removes a user-owned website.
func (h *WebsiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r)
}

// delete removes a website scoped to the caller's identity. A website
// owned by someone else reads as not found; existence never leaks across
// tenants.
func (h *WebsiteHandler) delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.Identity(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	id := r.PathValue("id")

	if err := h.websites.DeleteForOwner(id, owner); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Website not found")
			return
		}
		h.logger.Error("delete website", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete website")
		return
	}
	respond(w, http.StatusOK, "Website deleted", nil)
}

// Recheck forces a fresh probe of one website and persists the snapshot.
// Works for either identity; the record must belong to the caller.
func (h *WebsiteHandler) Recheck(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.Identity(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	id := r.PathValue("id")

	site, err := h.websites.GetForOwner(id, owner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Website not found")
			return
		}
		h.logger.Error("get website", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load website")
		return
	}

	updated, err := h.monitor.CheckWebsite(r.Context(), site)
	if err != nil {
		h.logger.Error("recheck website", "url", site.URL, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to recheck website")
		return
	}

	respond(w, http.StatusOK, "Recheck complete", updated)
}
