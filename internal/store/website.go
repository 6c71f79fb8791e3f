package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"webwatch/internal/model"
)

type WebsiteStore struct {
	db *sql.DB
}

func NewWebsiteStore(db *sql.DB) *WebsiteStore {
	return &WebsiteStore{db: db}
}

const websiteCols = `id, url, name, user_id, visitor_token, owner_status, status,
	response_time_ms, last_checked_at,
	tls_valid, tls_issuer, tls_subject, tls_valid_from, tls_valid_to, tls_days_remaining, tls_error,
	seo_title, seo_meta_description, seo_h1_count, seo_h2_count, seo_image_count, seo_images_without_alt, seo_issues,
	created_at, updated_at`

func scanWebsite(scanner interface{ Scan(...any) error }) (*model.Website, error) {
	var w model.Website
	var userID sql.NullInt64
	var visitorToken sql.NullString
	var responseTime sql.NullInt64
	var lastChecked sql.NullTime
	var tlsValid sql.NullBool
	var tlsIssuer, tlsSubject, tlsError sql.NullString
	var tlsFrom, tlsTo sql.NullTime
	var tlsDays sql.NullInt64
	var seoTitle, seoMeta sql.NullString
	var seoH1, seoH2, seoImages, seoNoAlt sql.NullInt64
	var seoIssues string

	err := scanner.Scan(
		&w.ID, &w.URL, &w.Name, &userID, &visitorToken, &w.OwnerStatus, &w.Status,
		&responseTime, &lastChecked,
		&tlsValid, &tlsIssuer, &tlsSubject, &tlsFrom, &tlsTo, &tlsDays, &tlsError,
		&seoTitle, &seoMeta, &seoH1, &seoH2, &seoImages, &seoNoAlt, &seoIssues,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		w.UserID = &userID.Int64
	}
	if visitorToken.Valid {
		w.VisitorToken = &visitorToken.String
	}
	if responseTime.Valid {
		w.ResponseTimeMs = &responseTime.Int64
	}
	if lastChecked.Valid {
		w.LastCheckedAt = &lastChecked.Time
	}

	w.TLS.Valid = tlsValid.Valid && tlsValid.Bool
	if tlsIssuer.Valid {
		w.TLS.Issuer = &tlsIssuer.String
	}
	if tlsSubject.Valid {
		w.TLS.Subject = &tlsSubject.String
	}
	if tlsFrom.Valid {
		w.TLS.ValidFrom = &tlsFrom.Time
	}
	if tlsTo.Valid {
		w.TLS.ValidTo = &tlsTo.Time
	}
	if tlsDays.Valid {
		days := int(tlsDays.Int64)
		w.TLS.DaysRemaining = &days
	}
	if tlsError.Valid {
		w.TLS.Error = &tlsError.String
	}

	if seoTitle.Valid {
		w.SEO.Title = &seoTitle.String
	}
	if seoMeta.Valid {
		w.SEO.MetaDescription = &seoMeta.String
	}
	intPtr := func(n sql.NullInt64) *int {
		if !n.Valid {
			return nil
		}
		v := int(n.Int64)
		return &v
	}
	w.SEO.H1Count = intPtr(seoH1)
	w.SEO.H2Count = intPtr(seoH2)
	w.SEO.ImageCount = intPtr(seoImages)
	w.SEO.ImagesWithoutAlt = intPtr(seoNoAlt)

	w.SEO.Issues = []string{}
	if seoIssues != "" {
		if err := json.Unmarshal([]byte(seoIssues), &w.SEO.Issues); err != nil {
			return nil, fmt.Errorf("decode seo issues: %w", err)
		}
	}
	return &w, nil
}

// ownerPredicate returns the WHERE fragment scoping a query to one owner.
// Every read and write path goes through it: user ownership filters on
// user_id, guest ownership on visitor_token with user_id still null, so a
// claimed row can never be reached through its old token.
func ownerPredicate(owner model.Owner) (string, []any) {
	if owner.IsUser() {
		return "user_id = ?", []any{owner.UserID()}
	}
	return "visitor_token = ? AND user_id IS NULL", []any{owner.VisitorToken()}
}

// Create inserts a website owned by the given owner. The caller supplies
// the stable id (a UUID); it never changes afterward, including across
// ownership transfer. A (url, owner) collision returns ErrDuplicateKey.
func (s *WebsiteStore) Create(id, url, name string, owner model.Owner, ownerStatus string) (*model.Website, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("create website: owner is required")
	}

	var userID sql.NullInt64
	var visitorToken sql.NullString
	if owner.IsUser() {
		userID = sql.NullInt64{Int64: owner.UserID(), Valid: true}
	} else {
		visitorToken = sql.NullString{String: owner.VisitorToken(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO websites (id, url, name, user_id, visitor_token, owner_status)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		id, url, name, userID, visitorToken, ownerStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("insert website: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrDuplicateKey
	}
	return s.GetByID(id)
}

// GetByID fetches a website without an ownership filter. For internal use
// only (claim engine, monitor); request paths go through GetForOwner.
func (s *WebsiteStore) GetByID(id string) (*model.Website, error) {
	row := s.db.QueryRow(`SELECT `+websiteCols+` FROM websites WHERE id = ?`, id)
	w, err := scanWebsite(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get website: %w", err)
	}
	return w, nil
}

// GetForOwner fetches a website by id scoped to the caller's identity.
// A row owned by someone else reads as ErrNotFound.
func (s *WebsiteStore) GetForOwner(id string, owner model.Owner) (*model.Website, error) {
	pred, args := ownerPredicate(owner)
	row := s.db.QueryRow(
		`SELECT `+websiteCols+` FROM websites WHERE id = ? AND `+pred,
		append([]any{id}, args...)...,
	)
	w, err := scanWebsite(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get website for owner: %w", err)
	}
	return w, nil
}

// GetByURLForUser fetches a user-owned website by URL.
func (s *WebsiteStore) GetByURLForUser(url string, userID int64) (*model.Website, error) {
	row := s.db.QueryRow(
		`SELECT `+websiteCols+` FROM websites WHERE url = ? AND user_id = ?`,
		url, userID,
	)
	w, err := scanWebsite(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get website by url: %w", err)
	}
	return w, nil
}

// ListByOwner returns all websites owned by the given identity.
func (s *WebsiteStore) ListByOwner(owner model.Owner) ([]model.Website, error) {
	pred, args := ownerPredicate(owner)
	rows, err := s.db.Query(
		`SELECT `+websiteCols+` FROM websites WHERE `+pred+` ORDER BY created_at`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()
	return collectWebsites(rows)
}

// ListAll returns every monitored website, for the daily recheck.
func (s *WebsiteStore) ListAll() ([]model.Website, error) {
	rows, err := s.db.Query(`SELECT ` + websiteCols + ` FROM websites ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list all websites: %w", err)
	}
	defer rows.Close()
	return collectWebsites(rows)
}

func collectWebsites(rows *sql.Rows) ([]model.Website, error) {
	var sites []model.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		sites = append(sites, *w)
	}
	return sites, rows.Err()
}

// UpdateProbeResult overwrites the probe snapshot fields and the
// last-checked timestamp. Ownership columns are never touched here.
func (s *WebsiteStore) UpdateProbeResult(id, status string, responseTimeMs *int64, tls model.TLSInfo, seo model.SEOInfo) error {
	issues, err := json.Marshal(seo.Issues)
	if err != nil {
		return fmt.Errorf("encode seo issues: %w", err)
	}
	if seo.Issues == nil {
		issues = []byte("[]")
	}

	var rt sql.NullInt64
	if responseTimeMs != nil {
		rt = sql.NullInt64{Int64: *responseTimeMs, Valid: true}
	}

	_, err = s.db.Exec(
		`UPDATE websites SET
			status = ?, response_time_ms = ?, last_checked_at = datetime('now'),
			tls_valid = ?, tls_issuer = ?, tls_subject = ?, tls_valid_from = ?,
			tls_valid_to = ?, tls_days_remaining = ?, tls_error = ?,
			seo_title = ?, seo_meta_description = ?, seo_h1_count = ?, seo_h2_count = ?,
			seo_image_count = ?, seo_images_without_alt = ?, seo_issues = ?,
			updated_at = datetime('now')
		 WHERE id = ?`,
		status, rt,
		tls.Valid, tls.Issuer, tls.Subject, tls.ValidFrom,
		tls.ValidTo, tls.DaysRemaining, tls.Error,
		seo.Title, seo.MetaDescription, seo.H1Count, seo.H2Count,
		seo.ImageCount, seo.ImagesWithoutAlt, string(issues),
		id,
	)
	if err != nil {
		return fmt.Errorf("update probe result: %w", err)
	}
	return nil
}

// ReassignToUser transfers a single website to a user, keeping its id.
// The visitor_token column is retained for audit; access control ignores
// it once user_id is set. An empty name leaves the display name alone.
func (s *WebsiteStore) ReassignToUser(id string, userID int64, name, ownerStatus string) (*model.Website, error) {
	_, err := s.db.Exec(
		`UPDATE websites SET
			user_id = ?, owner_status = ?,
			name = CASE WHEN ? != '' THEN ? ELSE name END,
			updated_at = datetime('now')
		 WHERE id = ?`,
		userID, ownerStatus, name, name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("reassign website: %w", err)
	}
	return s.GetByID(id)
}

// BulkReassignToken transfers every guest-owned website of a visitor token
// to the given user, marking them claimed. Returns the number transferred.
func (s *WebsiteStore) BulkReassignToken(token string, userID int64) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE websites SET user_id = ?, owner_status = ?, updated_at = datetime('now')
		 WHERE visitor_token = ? AND user_id IS NULL`,
		userID, model.OwnerClaimed, token,
	)
	if err != nil {
		return 0, fmt.Errorf("bulk reassign websites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// DeleteForOwner deletes a website scoped to the caller's identity.
// Deleting a row the caller does not own reports ErrNotFound, the same as
// a row that does not exist.
func (s *WebsiteStore) DeleteForOwner(id string, owner model.Owner) error {
	pred, args := ownerPredicate(owner)
	result, err := s.db.Exec(
		`DELETE FROM websites WHERE id = ? AND `+pred,
		append([]any{id}, args...)...,
	)
	if err != nil {
		return fmt.Errorf("delete website: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGuestByToken removes every website still guest-owned by the token.
// Used by the expiry sweep; claimed rows are untouched.
func (s *WebsiteStore) DeleteGuestByToken(token string) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM websites WHERE visitor_token = ? AND user_id IS NULL`,
		token,
	)
	if err != nil {
		return 0, fmt.Errorf("delete guest websites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// CountByToken counts websites associated with a token, claimed or not.
func (s *WebsiteStore) CountByToken(token string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM websites WHERE visitor_token = ?`, token,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count websites by token: %w", err)
	}
	return n, nil
}

// CountGuest counts websites still awaiting a claim.
func (s *WebsiteStore) CountGuest() (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM websites WHERE user_id IS NULL AND owner_status = ?`,
		model.OwnerGuest,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count guest websites: %w", err)
	}
	return n, nil
}
