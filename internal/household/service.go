package household

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

// Store is the persistence the service needs. *store.HouseholdStore
// implements it.
type Store interface {
	Create(ctx context.Context, h *model.Household) error
	GetByID(ctx context.Context, id string) (*model.Household, error)
	GetByJoinCode(ctx context.Context, code string) (*model.Household, error)
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	UpdateHousehold(ctx context.Context, id string, fn func(*model.Household) error) (*model.Household, error)
	ClearUserHousehold(ctx context.Context, userID string) error
}

// Service owns the household and chore lifecycle. The user passed to each
// method is trusted as already verified.
type Service struct {
	store   Store
	logger  *slog.Logger
	newCode func() (string, error)
	newID   func() string
	now     func() time.Time
}

func NewService(s Store, logger *slog.Logger) *Service {
	return &Service{
		store:   s,
		logger:  logger,
		newCode: GenerateJoinCode,
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LeaveResult describes what LeaveHousehold did.
type LeaveResult struct {
	// HouseholdDeleted is set when the caller was the last member.
	HouseholdDeleted bool
	// MembershipReset is set when the household no longer existed and only
	// the caller's stale reference was cleared.
	MembershipReset bool
	// Household is the remaining household, or nil if it is gone.
	Household *model.Household
}

// ChoreUpdate holds the fields to change. Nil fields are left alone. A non-nil
// AssignedTo pointing at "" clears the assignee.
type ChoreUpdate struct {
	Title      *string
	Status     *string
	AssignedTo *string
}

// CreateHousehold makes user the first member of a new household with a
// fresh join code.
func (s *Service) CreateHousehold(ctx context.Context, user model.User, name string) (*model.Household, error) {
	const op = "create household"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(op, ErrValidation, "Household name is required.")
	}
	if user.InHousehold() {
		return nil, newError(op, ErrAlreadyInHousehold, "You are already in a household.")
	}

	for {
		code, err := s.allocateJoinCode(ctx)
		if err != nil {
			return nil, storeError(op, err)
		}

		now := s.now()
		h := &model.Household{
			ID:       s.newID(),
			Name:     name,
			JoinCode: code,
			Members: []model.Member{{
				UserID:   user.ID,
				Name:     user.Name,
				Email:    user.Email,
				JoinedAt: now,
			}},
			Chores:    []model.Chore{},
			CreatedAt: now,
		}

		err = s.store.Create(ctx, h)
		switch {
		case errors.Is(err, store.ErrDuplicateJoinCode):
			// Lost a race for the code; draw a new one.
			s.logger.Debug("join code collision on insert", "code", code)
			continue
		case errors.Is(err, store.ErrUserHasHousehold):
			return nil, newError(op, ErrAlreadyInHousehold, "You are already in a household.")
		case err != nil:
			return nil, storeError(op, err)
		}

		s.logger.Info("household created", "household_id", h.ID, "user_id", user.ID)
		return h, nil
	}
}

// allocateJoinCode draws whole codes until one is not in use.
func (s *Service) allocateJoinCode(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		exists, err := s.store.JoinCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
}

// JoinHousehold adds user to the household whose join code matches.
func (s *Service) JoinHousehold(ctx context.Context, user model.User, joinCode string) (*model.Household, error) {
	const op = "join household"

	code := NormalizeJoinCode(joinCode)
	if code == "" {
		return nil, newError(op, ErrValidation, "Join code is required.")
	}
	if user.InHousehold() {
		return nil, newError(op, ErrAlreadyInHousehold, "You are already in a household.")
	}
	if !ValidJoinCode(code) {
		return nil, newError(op, ErrNotFound, "Household not found.")
	}

	found, err := s.store.GetByJoinCode(ctx, code)
	if err != nil {
		return nil, storeError(op, err)
	}
	if found == nil {
		return nil, newError(op, ErrNotFound, "Household not found.")
	}

	h, err := s.store.UpdateHousehold(ctx, found.ID, func(h *model.Household) error {
		if h.HasMember(user.ID) {
			return nil
		}
		h.Members = append(h.Members, model.Member{
			UserID:   user.ID,
			Name:     user.Name,
			Email:    user.Email,
			JoinedAt: s.now(),
		})
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, newError(op, ErrNotFound, "Household not found.")
	case errors.Is(err, store.ErrUserHasHousehold):
		return nil, newError(op, ErrAlreadyInHousehold, "You are already in a household.")
	case err != nil:
		return nil, storeError(op, err)
	}

	s.logger.Info("household joined", "household_id", h.ID, "user_id", user.ID)
	return h, nil
}

// GetHouseholdFor returns the user's household, or nil if they have none. A
// reference to a household that no longer exists is cleared.
func (s *Service) GetHouseholdFor(ctx context.Context, user model.User) (*model.Household, error) {
	const op = "get household"

	if !user.InHousehold() {
		return nil, nil
	}

	h, err := s.store.GetByID(ctx, *user.HouseholdID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if h == nil {
		s.logger.Warn("user references missing household; resetting", "user_id", user.ID, "household_id", *user.HouseholdID)
		if err := s.store.ClearUserHousehold(ctx, user.ID); err != nil {
			return nil, storeError(op, err)
		}
		return nil, nil
	}
	return h, nil
}

// LeaveHousehold removes user from their household, deleting it when they
// were the last member. Chores assigned to the leaving member are unassigned.
func (s *Service) LeaveHousehold(ctx context.Context, user model.User) (LeaveResult, error) {
	const op = "leave household"

	if !user.InHousehold() {
		return LeaveResult{}, newError(op, ErrNotInHousehold, "You are not currently in a household.")
	}
	householdID := *user.HouseholdID

	wasMember := false
	h, err := s.store.UpdateHousehold(ctx, householdID, func(h *model.Household) error {
		i := h.MemberIndex(user.ID)
		wasMember = i >= 0
		if !wasMember {
			return nil
		}
		h.Members = append(h.Members[:i], h.Members[i+1:]...)

		now := s.now()
		for j := range h.Chores {
			c := &h.Chores[j]
			if c.AssignedTo != nil && *c.AssignedTo == user.ID {
				c.AssignedTo = nil
				c.UpdatedAt = now
			}
		}
		h.RotationIndex = chore.NormalizeIndex(h.RotationIndex, len(h.Members))
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("leaving missing household; resetting membership", "user_id", user.ID, "household_id", householdID)
		if err := s.store.ClearUserHousehold(ctx, user.ID); err != nil {
			return LeaveResult{}, storeError(op, err)
		}
		return LeaveResult{MembershipReset: true}, nil
	}
	if err != nil {
		return LeaveResult{}, storeError(op, err)
	}

	if !wasMember {
		// The saved household did not list the user, so nothing cleared the
		// reference on their side.
		if err := s.store.ClearUserHousehold(ctx, user.ID); err != nil {
			return LeaveResult{}, storeError(op, err)
		}
	}

	deleted := len(h.Members) == 0
	s.logger.Info("household left", "household_id", householdID, "user_id", user.ID, "deleted", deleted)
	if deleted {
		return LeaveResult{HouseholdDeleted: true}, nil
	}
	return LeaveResult{Household: h}, nil
}

// AddChore appends a pending chore to the user's household.
func (s *Service) AddChore(ctx context.Context, user model.User, title, assignedToID string) (*model.Household, error) {
	const op = "add chore"

	if !user.InHousehold() {
		return nil, newError(op, ErrNotInHousehold, "You are not in a household.")
	}
	title = chore.NormalizeTitle(title)
	if title == "" {
		return nil, newError(op, ErrValidation, "Chore title is required.")
	}
	assignedToID = strings.TrimSpace(assignedToID)

	return s.update(ctx, op, *user.HouseholdID, func(h *model.Household) error {
		var assignedTo *string
		if assignedToID != "" {
			if !h.HasMember(assignedToID) {
				return newError(op, ErrInvalidAssignment, "Assigned user is not in this household.")
			}
			assignedTo = &assignedToID
		}

		now := s.now()
		h.Chores = append(h.Chores, model.Chore{
			ID:         s.newID(),
			Title:      title,
			Status:     model.ChoreStatusPending,
			AssignedTo: assignedTo,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		return nil
	})
}

// UpdateChore applies a partial update to a chore in the user's household.
func (s *Service) UpdateChore(ctx context.Context, user model.User, choreID string, upd ChoreUpdate) (*model.Household, error) {
	const op = "update chore"

	if !user.InHousehold() {
		return nil, newError(op, ErrNotInHousehold, "You are not in a household.")
	}

	var title string
	if upd.Title != nil {
		title = chore.NormalizeTitle(*upd.Title)
		if title == "" {
			return nil, newError(op, ErrValidation, "Chore title is required.")
		}
	}
	var status model.ChoreStatus
	if upd.Status != nil {
		var err error
		if status, err = chore.ParseStatus(*upd.Status); err != nil {
			return nil, newError(op, ErrValidation, "Invalid status. Use 'pending' or 'done'.")
		}
	}

	return s.update(ctx, op, *user.HouseholdID, func(h *model.Household) error {
		c := h.Chore(choreID)
		if c == nil {
			return newError(op, ErrNotFound, "Chore not found.")
		}

		var assignedTo *string
		if upd.AssignedTo != nil {
			if id := strings.TrimSpace(*upd.AssignedTo); id != "" {
				if !h.HasMember(id) {
					return newError(op, ErrInvalidAssignment, "Assigned user is not in this household.")
				}
				assignedTo = &id
			}
		}

		if upd.Title != nil {
			c.Title = title
		}
		if upd.Status != nil {
			c.Status = status
		}
		if upd.AssignedTo != nil {
			c.AssignedTo = assignedTo
		}
		c.UpdatedAt = s.now()
		return nil
	})
}

// DeleteChore removes a chore from the user's household.
func (s *Service) DeleteChore(ctx context.Context, user model.User, choreID string) (*model.Household, error) {
	const op = "delete chore"

	if !user.InHousehold() {
		return nil, newError(op, ErrNotInHousehold, "You are not in a household.")
	}

	return s.update(ctx, op, *user.HouseholdID, func(h *model.Household) error {
		for i := range h.Chores {
			if h.Chores[i].ID == choreID {
				h.Chores = append(h.Chores[:i], h.Chores[i+1:]...)
				return nil
			}
		}
		return newError(op, ErrNotFound, "Chore not found.")
	})
}

// RotateChores reassigns the pending chores round-robin from the household's
// rotation cursor and advances the cursor by one.
func (s *Service) RotateChores(ctx context.Context, user model.User) (*model.Household, error) {
	const op = "rotate chores"

	if !user.InHousehold() {
		return nil, newError(op, ErrNotInHousehold, "You are not in a household.")
	}

	return s.update(ctx, op, *user.HouseholdID, func(h *model.Household) error {
		before := make([]*string, len(h.Chores))
		for i, c := range h.Chores {
			before[i] = c.AssignedTo
		}

		r, err := chore.Rotate(h.Chores, h.MemberIDs(), h.RotationIndex)
		switch {
		case errors.Is(err, chore.ErrNoMembers):
			return newError(op, ErrValidation, "No members in household to rotate chores.")
		case errors.Is(err, chore.ErrNoPendingChores):
			return newError(op, ErrValidation, "No pending chores to rotate.")
		case err != nil:
			return err
		}

		now := s.now()
		for i := range h.Chores {
			if !sameAssignee(before[i], h.Chores[i].AssignedTo) {
				h.Chores[i].UpdatedAt = now
			}
		}
		h.RotationIndex = r.NextIndex
		s.logger.Debug("chores rotated", "household_id", h.ID, "assigned", r.Assigned, "next_index", r.NextIndex)
		return nil
	})
}

// update runs fn against the household inside one atomic store update and
// maps store failures onto error kinds.
func (s *Service) update(ctx context.Context, op, householdID string, fn func(*model.Household) error) (*model.Household, error) {
	h, err := s.store.UpdateHousehold(ctx, householdID, fn)
	if err == nil {
		return h, nil
	}

	var domainErr *Error
	switch {
	case errors.As(err, &domainErr):
		return nil, err
	case errors.Is(err, store.ErrNotFound):
		return nil, newError(op, ErrNotFound, "Household not found.")
	default:
		return nil, storeError(op, err)
	}
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
