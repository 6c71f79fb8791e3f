package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"webwatch/internal/model"
)

const (
	tokenExpiryDays  = 7
	issueLimitPerIP  = 5
	issueLimitWindow = time.Hour
)

type VisitorTokenStore struct {
	db *sql.DB
}

func NewVisitorTokenStore(db *sql.DB) *VisitorTokenStore {
	return &VisitorTokenStore{db: db}
}

const visitorTokenCols = `id, token, status, user_id, expires_at, claimed_at, created_from_ip, created_at, updated_at`

func scanVisitorToken(scanner interface{ Scan(...any) error }) (*model.VisitorToken, error) {
	var t model.VisitorToken
	var userID sql.NullInt64
	var expiresAt, claimedAt sql.NullTime
	var ip sql.NullString

	err := scanner.Scan(
		&t.ID, &t.Token, &t.Status, &userID, &expiresAt,
		&claimedAt, &ip, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		t.UserID = &userID.Int64
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	if claimedAt.Valid {
		t.ClaimedAt = &claimedAt.Time
	}
	if ip.Valid {
		t.CreatedFromIP = ip.String
	}
	return &t, nil
}

// Issue creates a fresh anonymous token with a 7-day expiry, recording the
// caller's IP. At most 5 tokens per IP per rolling hour; beyond that it
// returns ErrRateLimited. The count-then-insert is deliberately not
// transactional: slight over-admission under concurrent abuse is accepted.
func (s *VisitorTokenStore) Issue(ip string) (*model.VisitorToken, error) {
	windowStart := time.Now().UTC().Add(-issueLimitWindow)

	var recent int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM visitor_tokens WHERE created_from_ip = ? AND created_at >= ?`,
		ip, windowStart,
	).Scan(&recent)
	if err != nil {
		return nil, fmt.Errorf("count recent tokens: %w", err)
	}
	if recent >= issueLimitPerIP {
		return nil, ErrRateLimited
	}

	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(tokenExpiryDays * 24 * time.Hour)

	result, err := s.db.Exec(
		`INSERT INTO visitor_tokens (token, status, expires_at, created_from_ip) VALUES (?, ?, ?, ?)`,
		token, model.TokenAnonymous, expiresAt, ip,
	)
	if err != nil {
		return nil, fmt.Errorf("insert visitor token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+visitorTokenCols+` FROM visitor_tokens WHERE id = ?`, id)
	return scanVisitorToken(row)
}

// GetByToken looks up a token by value. An anonymous token past its expiry
// is flipped to expired as a side effect of the read (lazy expiry; the
// sweep exists for storage reclamation, not correctness) and returned in
// its expired state; callers decide via Status / ValidAt.
func (s *VisitorTokenStore) GetByToken(token string) (*model.VisitorToken, error) {
	row := s.db.QueryRow(`SELECT `+visitorTokenCols+` FROM visitor_tokens WHERE token = ?`, token)
	t, err := scanVisitorToken(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visitor token: %w", err)
	}

	if t.Status == model.TokenAnonymous && !t.ValidAt(time.Now().UTC()) {
		if err := s.MarkExpired(t.Token); err != nil {
			return nil, err
		}
		t.Status = model.TokenExpired
	}
	return t, nil
}

// Claim transitions an anonymous token to claimed by the given user,
// clearing its expiry. Claimed tokens do not expire. Already-claimed and
// expired tokens fail with ErrTokenClaimed / ErrTokenExpired.
func (s *VisitorTokenStore) Claim(token string, userID int64) (*model.VisitorToken, error) {
	t, err := s.GetByToken(token)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case model.TokenClaimed:
		return nil, ErrTokenClaimed
	case model.TokenExpired:
		return nil, ErrTokenExpired
	}

	_, err = s.db.Exec(
		`UPDATE visitor_tokens
		 SET status = ?, user_id = ?, claimed_at = datetime('now'), expires_at = NULL, updated_at = datetime('now')
		 WHERE token = ? AND status = ?`,
		model.TokenClaimed, userID, token, model.TokenAnonymous,
	)
	if err != nil {
		return nil, fmt.Errorf("claim visitor token: %w", err)
	}
	return s.GetByToken(token)
}

// MarkExpired flips a token to the terminal expired state.
func (s *VisitorTokenStore) MarkExpired(token string) error {
	_, err := s.db.Exec(
		`UPDATE visitor_tokens SET status = ?, updated_at = datetime('now') WHERE token = ?`,
		model.TokenExpired, token,
	)
	if err != nil {
		return fmt.Errorf("mark token expired: %w", err)
	}
	return nil
}

// ListExpiredAnonymous returns anonymous tokens whose expiry has passed.
func (s *VisitorTokenStore) ListExpiredAnonymous(now time.Time) ([]model.VisitorToken, error) {
	rows, err := s.db.Query(
		`SELECT `+visitorTokenCols+` FROM visitor_tokens WHERE status = ? AND expires_at < ?`,
		model.TokenAnonymous, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.VisitorToken
	for rows.Next() {
		t, err := scanVisitorToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

// PurgeExpiredBefore deletes tokens that reached the expired state before
// the cutoff. Storage reclamation only; the expire pass already removed
// any websites they owned.
func (s *VisitorTokenStore) PurgeExpiredBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM visitor_tokens WHERE status = ? AND updated_at < ?`,
		model.TokenExpired, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// TokenStats summarizes token lifecycle state for sweep logging.
type TokenStats struct {
	Anonymous    int `json:"anonymous"`
	Claimed      int `json:"claimed"`
	Expired      int `json:"expired"`
	ExpiringSoon int `json:"expiring_soon"`
}

// Stats counts tokens by status plus anonymous tokens expiring within 24h.
func (s *VisitorTokenStore) Stats() (*TokenStats, error) {
	var st TokenStats
	now := time.Now().UTC()

	countByStatus := func(status string, dst *int) error {
		return s.db.QueryRow(
			`SELECT COUNT(*) FROM visitor_tokens WHERE status = ?`, status,
		).Scan(dst)
	}
	if err := countByStatus(model.TokenAnonymous, &st.Anonymous); err != nil {
		return nil, fmt.Errorf("count anonymous: %w", err)
	}
	if err := countByStatus(model.TokenClaimed, &st.Claimed); err != nil {
		return nil, fmt.Errorf("count claimed: %w", err)
	}
	if err := countByStatus(model.TokenExpired, &st.Expired); err != nil {
		return nil, fmt.Errorf("count expired: %w", err)
	}

	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM visitor_tokens WHERE status = ? AND expires_at >= ? AND expires_at < ?`,
		model.TokenAnonymous, now, now.Add(24*time.Hour),
	).Scan(&st.ExpiringSoon)
	if err != nil {
		return nil, fmt.Errorf("count expiring soon: %w", err)
	}
	return &st, nil
}
