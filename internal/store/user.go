package store

import (
	"database/sql"
	"fmt"

	"webwatch/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, name, email, password_hash, refresh_token, created_at, updated_at`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var refreshToken sql.NullString
	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &refreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if refreshToken.Valid {
		u.RefreshToken = &refreshToken.String
	}
	return &u, nil
}

func (s *UserStore) Create(name, email, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		name, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrDuplicateKey
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// SetRefreshToken stores the user's current refresh token so rotation can
// reject tokens that were already replaced.
func (s *UserStore) SetRefreshToken(id int64, token string) error {
	_, err := s.db.Exec(
		`UPDATE users SET refresh_token = ?, updated_at = datetime('now') WHERE id = ?`,
		token, id,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return nil
}
