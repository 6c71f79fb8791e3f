package model

import "time"

// Website ownership states. A guest-created site starts as "guest", becomes
// "claimed" when its visitor token is claimed in bulk, and "active" when a
// user owns it directly (created while logged in, or migrated explicitly).
const (
	OwnerGuest   = "guest"
	OwnerClaimed = "claimed"
	OwnerActive  = "active"
)

// Last-known reachability of a monitored site.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)

// TLSInfo is the persisted certificate summary from the last TLS probe.
type TLSInfo struct {
	Valid         bool       `json:"is_valid"`
	Issuer        *string    `json:"issuer"`
	Subject       *string    `json:"subject"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidTo       *time.Time `json:"valid_to"`
	DaysRemaining *int       `json:"days_remaining"`
	Error         *string    `json:"error"`
}

// SEOInfo is the persisted on-page summary from the last SEO probe.
type SEOInfo struct {
	Title            *string  `json:"title"`
	MetaDescription  *string  `json:"meta_description"`
	H1Count          *int     `json:"h1_count"`
	H2Count          *int     `json:"h2_count"`
	ImageCount       *int     `json:"image_count"`
	ImagesWithoutAlt *int     `json:"images_without_alt"`
	Issues           []string `json:"issues"`
}

func (s SEOInfo) HasIssues() bool {
	return len(s.Issues) > 0
}

type Website struct {
	// ID is assigned at creation and survives ownership transfer, so a
	// client holding a pre-claim id can still address the record afterward.
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	Name           string     `json:"name"`
	UserID         *int64     `json:"user_id"`
	VisitorToken   *string    `json:"visitor_token,omitempty"`
	OwnerStatus    string     `json:"owner_status"`
	Status         string     `json:"status"`
	ResponseTimeMs *int64     `json:"response_time_ms"`
	LastCheckedAt  *time.Time `json:"last_checked_at"`
	TLS            TLSInfo    `json:"ssl"`
	SEO            SEOInfo    `json:"seo"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Owner returns the record's owner. User ownership wins once set; the
// visitor_token column is kept for audit but no longer grants access.
func (w *Website) Owner() Owner {
	if w.UserID != nil {
		return OwnerUser(*w.UserID)
	}
	if w.VisitorToken != nil {
		return OwnerVisitor(*w.VisitorToken)
	}
	return Owner{}
}
