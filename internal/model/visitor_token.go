package model

import "time"

// Visitor token lifecycle states. Transitions are one-way:
// anonymous -> claimed (signup/login) or anonymous -> expired (sweep or
// lazy expiry on read). Claimed and expired are terminal.
const (
	TokenAnonymous = "anonymous"
	TokenClaimed   = "claimed"
	TokenExpired   = "expired"
)

type VisitorToken struct {
	ID            int64      `json:"-"`
	Token         string     `json:"token"`
	Status        string     `json:"status"`
	UserID        *int64     `json:"user_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedFromIP string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"-"`
}

// ValidAt reports whether the token is usable as a guest identity at the
// given instant. This is the single definition of validity: the per-request
// lazy check and the batch sweep both defer to it, so they cannot disagree.
// Claimed tokens never expire; expired tokens are never valid again.
func (t *VisitorToken) ValidAt(now time.Time) bool {
	switch t.Status {
	case TokenClaimed:
		return true
	case TokenAnonymous:
		return t.ExpiresAt != nil && now.Before(*t.ExpiresAt)
	default:
		return false
	}
}

func (t *VisitorToken) IsClaimed() bool {
	return t.Status == TokenClaimed
}
