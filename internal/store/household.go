package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

const maxUpdateAttempts = 5

// HouseholdStore persists households as aggregates: the household row, its
// ordered members and its ordered chores are read and written together.
type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.JoinCode, &h.RotationIndex, &h.Version, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var assignedTo sql.NullString
	err := scanner.Scan(&c.ID, &c.Title, &c.Status, &assignedTo, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		c.AssignedTo = &assignedTo.String
	}
	return &c, nil
}

const householdCols = `id, name, join_code, rotation_index, version, created_at, updated_at`
const choreCols = `id, title, status, assigned_to, created_at, updated_at`

// Create inserts a new household with its initial members and chores, and
// points each member's household reference at it, in one transaction.
func (s *HouseholdStore) Create(ctx context.Context, h *model.Household) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	h.Version = 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO households (id, name, join_code, rotation_index, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Name, h.JoinCode, h.RotationIndex, h.Version, h.CreatedAt, h.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateJoinCode
	}
	if err != nil {
		return fmt.Errorf("insert household: %w", err)
	}

	for _, m := range h.Members {
		if err := addMember(ctx, tx, h.ID, m); err != nil {
			return err
		}
	}
	if err := syncChores(ctx, tx, h); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit household: %w", err)
	}
	return nil
}

// GetByID returns the populated household, or nil if it does not exist.
func (s *HouseholdStore) GetByID(ctx context.Context, id string) (*model.Household, error) {
	return s.load(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
}

// GetByJoinCode returns the populated household with the given code, or nil.
// The code is matched exactly; callers normalise it first.
func (s *HouseholdStore) GetByJoinCode(ctx context.Context, code string) (*model.Household, error) {
	return s.load(ctx, `SELECT `+householdCols+` FROM households WHERE join_code = ?`, code)
}

func (s *HouseholdStore) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM households WHERE join_code = ?`, code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check join code: %w", err)
	}
	return count > 0, nil
}

// UpdateHousehold reads the household, applies fn and writes the result back
// as one atomic update. The write only succeeds if nobody else saved the
// household since it was read; otherwise the read and fn are retried.
//
// If fn leaves the household without members, the household and its chores
// are deleted instead. An error from fn aborts the update unchanged.
func (s *HouseholdStore) UpdateHousehold(ctx context.Context, id string, fn func(*model.Household) error) (*model.Household, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		h, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, ErrNotFound
		}

		if err := fn(h); err != nil {
			return nil, err
		}

		err = s.save(ctx, h)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	return nil, ErrConflict
}

// ClearUserHousehold resets a user's household reference and drops any
// membership row left behind for them.
func (s *HouseholdStore) ClearUserHousehold(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM household_members WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET household_id = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	); err != nil {
		return fmt.Errorf("clear user household: %w", err)
	}
	return tx.Commit()
}

func (s *HouseholdStore) load(ctx context.Context, query string, arg any) (*model.Household, error) {
	h, err := scanHousehold(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}

	if h.Members, err = listMembers(ctx, s.db, h.ID); err != nil {
		return nil, err
	}
	if h.Chores, err = listChores(ctx, s.db, h.ID); err != nil {
		return nil, err
	}
	return h, nil
}

func listMembers(ctx context.Context, q queryer, householdID string) ([]model.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT hm.user_id, u.name, u.email, hm.joined_at
		 FROM household_members hm
		 JOIN users u ON u.id = hm.user_id
		 WHERE hm.household_id = ?
		 ORDER BY hm.position ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func listChores(ctx context.Context, q queryer, householdID string) ([]model.Chore, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+choreCols+` FROM chores WHERE household_id = ? ORDER BY position ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	chores := []model.Chore{}
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *HouseholdStore) save(ctx context.Context, h *model.Household) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if len(h.Members) == 0 {
		if err := deleteHousehold(ctx, tx, h); err != nil {
			return err
		}
		return tx.Commit()
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE households SET name = ?, rotation_index = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		h.Name, h.RotationIndex, now, h.ID, h.Version,
	)
	if err != nil {
		return fmt.Errorf("update household: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return ErrConflict
	}

	if err := syncMembers(ctx, tx, h); err != nil {
		return err
	}
	if err := syncChores(ctx, tx, h); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit household: %w", err)
	}
	h.Version++
	h.UpdatedAt = now
	return nil
}

func deleteHousehold(ctx context.Context, tx *sql.Tx, h *model.Household) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM households WHERE id = ? AND version = ?`, h.ID, h.Version)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET household_id = NULL, updated_at = ? WHERE household_id = ?`,
		time.Now().UTC(), h.ID,
	); err != nil {
		return fmt.Errorf("clear member references: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM household_members WHERE household_id = ?`, h.ID); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chores WHERE household_id = ?`, h.ID); err != nil {
		return fmt.Errorf("delete chores: %w", err)
	}
	return nil
}

// syncMembers removes departed members and appends new ones after the
// current last position, keeping user household references in step.
func syncMembers(ctx context.Context, tx *sql.Tx, h *model.Household) error {
	existing, err := listMembers(ctx, tx, h.ID)
	if err != nil {
		return err
	}

	current := make(map[string]bool, len(existing))
	for _, m := range existing {
		current[m.UserID] = true
	}
	wanted := make(map[string]bool, len(h.Members))
	for _, m := range h.Members {
		wanted[m.UserID] = true
	}

	for _, m := range existing {
		if wanted[m.UserID] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM household_members WHERE household_id = ? AND user_id = ?`,
			h.ID, m.UserID,
		); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET household_id = NULL, updated_at = ? WHERE id = ? AND household_id = ?`,
			time.Now().UTC(), m.UserID, h.ID,
		); err != nil {
			return fmt.Errorf("clear member reference: %w", err)
		}
	}

	for _, m := range h.Members {
		if current[m.UserID] {
			continue
		}
		if err := addMember(ctx, tx, h.ID, m); err != nil {
			return err
		}
	}
	return nil
}

func addMember(ctx context.Context, tx *sql.Tx, householdID string, m model.Member) error {
	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO household_members (household_id, user_id, position, joined_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM household_members WHERE household_id = ?), ?)`,
		householdID, m.UserID, householdID, joinedAt,
	)
	if isUniqueViolation(err) {
		return ErrUserHasHousehold
	}
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET household_id = ?, updated_at = ? WHERE id = ? AND household_id IS NULL`,
		householdID, time.Now().UTC(), m.UserID,
	)
	if err != nil {
		return fmt.Errorf("set member reference: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return ErrUserHasHousehold
	}
	return nil
}

// syncChores makes the stored chores match h.Chores: missing ones are
// deleted, the rest upserted with their slice index as position.
func syncChores(ctx context.Context, tx *sql.Tx, h *model.Household) error {
	keep := make(map[string]bool, len(h.Chores))
	for _, c := range h.Chores {
		keep[c.ID] = true
	}

	existing, err := listChores(ctx, tx, h.ID)
	if err != nil {
		return err
	}
	for _, c := range existing {
		if keep[c.ID] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chores WHERE household_id = ? AND id = ?`,
			h.ID, c.ID,
		); err != nil {
			return fmt.Errorf("delete chore: %w", err)
		}
	}

	now := time.Now().UTC()
	for i := range h.Chores {
		c := &h.Chores[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.CreatedAt
		}

		var assignedTo sql.NullString
		if c.AssignedTo != nil {
			assignedTo = sql.NullString{String: *c.AssignedTo, Valid: true}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO chores (id, household_id, title, status, assigned_to, position, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   title = excluded.title,
			   status = excluded.status,
			   assigned_to = excluded.assigned_to,
			   position = excluded.position,
			   updated_at = excluded.updated_at
			 WHERE chores.household_id = excluded.household_id`,
			c.ID, h.ID, c.Title, string(c.Status), assignedTo, i, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert chore: %w", err)
		}
	}
	return nil
}
