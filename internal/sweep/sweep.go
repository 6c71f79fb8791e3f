// Package sweep reclaims storage held by dead visitor tokens. The expire
// pass deletes guest websites of overdue anonymous tokens and marks the
// tokens expired; the purge pass deletes tokens that have sat expired past
// the retention window. Both passes are idempotent.
package sweep

import (
	"fmt"
	"log/slog"
	"time"

	"webwatch/internal/store"
)

const purgeRetentionDays = 30

// Stats reports what one sweep run did.
type Stats struct {
	TokensExpired   int
	WebsitesDeleted int64
	TokensPurged    int64
}

type Sweeper struct {
	tokens   *store.VisitorTokenStore
	websites *store.WebsiteStore
	logger   *slog.Logger
}

func New(tokens *store.VisitorTokenStore, websites *store.WebsiteStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		tokens:   tokens,
		websites: websites,
		logger:   logger.With("component", "sweep"),
	}
}

// Run executes the expire pass, then the purge pass.
func (s *Sweeper) Run(now time.Time) (Stats, error) {
	var stats Stats

	expired, deleted, err := s.expirePass(now)
	if err != nil {
		return stats, err
	}
	stats.TokensExpired = expired
	stats.WebsitesDeleted = deleted

	purged, err := s.purgePass(now)
	if err != nil {
		return stats, err
	}
	stats.TokensPurged = purged

	s.logger.Info("sweep complete",
		"tokens_expired", stats.TokensExpired,
		"websites_deleted", stats.WebsitesDeleted,
		"tokens_purged", stats.TokensPurged)

	if tokenStats, err := s.tokens.Stats(); err == nil {
		s.logger.Info("token stats",
			"anonymous", tokenStats.Anonymous,
			"claimed", tokenStats.Claimed,
			"expired", tokenStats.Expired,
			"expiring_soon", tokenStats.ExpiringSoon)
	}
	return stats, nil
}

// expirePass finds anonymous tokens past their expiry, deletes the guest
// websites still attached to each, then marks the token expired. Websites
// go first so a crash between the two steps leaves the token to be picked
// up again on the next run. One bad token does not stop the pass.
func (s *Sweeper) expirePass(now time.Time) (int, int64, error) {
	overdue, err := s.tokens.ListExpiredAnonymous(now)
	if err != nil {
		return 0, 0, fmt.Errorf("list overdue tokens: %w", err)
	}

	var expired int
	var deleted int64
	for _, t := range overdue {
		n, err := s.websites.DeleteGuestByToken(t.Token)
		if err != nil {
			s.logger.Error("delete guest websites", "error", err)
			continue
		}
		if err := s.tokens.MarkExpired(t.Token); err != nil {
			s.logger.Error("mark token expired", "error", err)
			continue
		}
		expired++
		deleted += n
	}
	return expired, deleted, nil
}

// purgePass deletes tokens that reached the expired state more than the
// retention window ago. Claimed tokens are never purged.
func (s *Sweeper) purgePass(now time.Time) (int64, error) {
	cutoff := now.Add(-purgeRetentionDays * 24 * time.Hour)
	purged, err := s.tokens.PurgeExpiredBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return purged, nil
}
