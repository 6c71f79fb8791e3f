// Package claim implements guest-to-user ownership transfer: claiming a
// visitor token (bulk transfer of its websites) and migrating individual
// guest websites into a user account.
package claim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"webwatch/internal/model"
	"webwatch/internal/store"
)

type Engine struct {
	tokens   *store.VisitorTokenStore
	websites *store.WebsiteStore
	logger   *slog.Logger
}

func New(tokens *store.VisitorTokenStore, websites *store.WebsiteStore, logger *slog.Logger) *Engine {
	return &Engine{
		tokens:   tokens,
		websites: websites,
		logger:   logger.With("component", "claim"),
	}
}

// ClaimToken transitions an anonymous token to claimed by the user and
// transfers every guest website under it in one step. Returns the number
// of websites transferred. Claiming is one-shot per token: an
// already-claimed token fails with ErrTokenClaimed even for the same user.
func (e *Engine) ClaimToken(token string, userID int64) (int64, error) {
	if _, err := e.tokens.Claim(token, userID); err != nil {
		return 0, err
	}

	transferred, err := e.websites.BulkReassignToken(token, userID)
	if err != nil {
		return 0, fmt.Errorf("transfer websites: %w", err)
	}

	e.logger.Info("token claimed",
		"user_id", userID,
		"websites_transferred", transferred)
	return transferred, nil
}

// Item is one guest website a client asks to carry into its account.
// ID addresses the existing guest record; URL and Name seed a fresh
// record when the guest row is gone.
type Item struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Migrate moves each item into the user's account. Per item, in order:
// the user already monitors the URL (no-op, return that row), the guest
// record still exists (transfer in place, id preserved), otherwise create
// a fresh record from the submitted URL and name. Items are independent;
// one failure does not roll back the others.
func (e *Engine) Migrate(userID int64, items []Item) ([]model.Website, error) {
	migrated := make([]model.Website, 0, len(items))

	for _, item := range items {
		w, err := e.migrateOne(userID, item)
		if err != nil {
			return nil, fmt.Errorf("migrate %q: %w", item.URL, err)
		}
		migrated = append(migrated, *w)
	}

	e.logger.Info("websites migrated", "user_id", userID, "count", len(migrated))
	return migrated, nil
}

func (e *Engine) migrateOne(userID int64, item Item) (*model.Website, error) {
	existing, err := e.websites.GetByURLForUser(item.URL, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// The fresh record keeps the client's identifier, so a cached site
	// list can still address it after migration.
	id := item.ID
	if id != "" {
		guest, err := e.websites.GetByID(id)
		switch {
		case err == nil && guest.UserID == nil:
			return e.websites.ReassignToUser(guest.ID, userID, item.Name, model.OwnerActive)
		case err == nil:
			// The id belongs to a record someone else owns; mint a new one
			id = ""
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	w, err := e.websites.Create(id, item.URL, item.Name, model.OwnerUser(userID), model.OwnerActive)
	if errors.Is(err, store.ErrDuplicateKey) {
		// Lost a race with a concurrent migration of the same URL.
		return e.websites.GetByURLForUser(item.URL, userID)
	}
	return w, err
}
