package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/chorewheel/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var householdID sql.NullString
	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &householdID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if householdID.Valid {
		u.HouseholdID = &householdID.String
	}
	return &u, nil
}

const userCols = `id, name, email, household_id, created_at, updated_at`

// Create inserts a user. Emails are stored lower-cased; a duplicate returns
// ErrDuplicateEmail.
func (s *UserStore) Create(ctx context.Context, name, email, passwordHash string) (*model.User, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, normalizeEmail(email), passwordHash, now, now,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetCredentials returns the user and password hash for an email, or nil if
// no such user exists.
func (s *UserStore) GetCredentials(ctx context.Context, email string) (*model.User, string, error) {
	var u model.User
	var householdID sql.NullString
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+userCols+`, password_hash FROM users WHERE email = ?`,
		normalizeEmail(email),
	).Scan(&u.ID, &u.Name, &u.Email, &householdID, &u.CreatedAt, &u.UpdatedAt, &hash)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get credentials: %w", err)
	}
	if householdID.Valid {
		u.HouseholdID = &householdID.String
	}
	return &u, hash, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
