package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
)

func setupHouseholdTestDB(t *testing.T) (*HouseholdStore, *UserStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHouseholdStore(db), NewUserStore(db), db
}

func createUser(t *testing.T, us *UserStore, name string) *model.User {
	t.Helper()
	u, err := us.Create(context.Background(), name, name+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newHousehold(id, code string, members ...*model.User) *model.Household {
	h := &model.Household{ID: id, Name: "Home " + id, JoinCode: code}
	for _, u := range members {
		h.Members = append(h.Members, model.Member{UserID: u.ID})
	}
	return h
}

func TestHouseholdCreate(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createUser(t, us, "alice")

	h := newHousehold("h1", "ABC234", alice)
	h.Chores = []model.Chore{{ID: "c1", Title: "Dishes", Status: model.ChoreStatusPending}}
	if err := hs.Create(ctx, h); err != nil {
		t.Fatalf("create household: %v", err)
	}

	got, err := hs.GetByID(ctx, "h1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Name != "Home h1" || got.JoinCode != "ABC234" || got.Version != 1 {
		t.Errorf("household = %+v", got)
	}
	if len(got.Members) != 1 || got.Members[0].UserID != alice.ID || got.Members[0].Name != "alice" {
		t.Errorf("members = %+v", got.Members)
	}
	if len(got.Chores) != 1 || got.Chores[0].Title != "Dishes" {
		t.Errorf("chores = %+v", got.Chores)
	}

	u, _ := us.GetByID(ctx, alice.ID)
	if u.HouseholdID == nil || *u.HouseholdID != "h1" {
		t.Errorf("user household = %v, want h1", u.HouseholdID)
	}
}

func TestHouseholdCreateDuplicateJoinCode(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", createUser(t, us, "alice"))); err != nil {
		t.Fatalf("create household: %v", err)
	}
	bob := createUser(t, us, "bob")
	err := hs.Create(ctx, newHousehold("h2", "ABC234", bob))
	if !errors.Is(err, ErrDuplicateJoinCode) {
		t.Fatalf("err = %v, want ErrDuplicateJoinCode", err)
	}

	u, _ := us.GetByID(ctx, bob.ID)
	if u.HouseholdID != nil {
		t.Error("failed create left a household reference behind")
	}
}

func TestHouseholdCreateUserAlreadyMember(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createUser(t, us, "alice")

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", alice)); err != nil {
		t.Fatalf("create household: %v", err)
	}
	err := hs.Create(ctx, newHousehold("h2", "XYZ789", alice))
	if !errors.Is(err, ErrUserHasHousehold) {
		t.Fatalf("err = %v, want ErrUserHasHousehold", err)
	}
	if h, _ := hs.GetByID(ctx, "h2"); h != nil {
		t.Error("household h2 should not exist")
	}
}

func TestHouseholdGetByJoinCode(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", createUser(t, us, "alice"))); err != nil {
		t.Fatalf("create household: %v", err)
	}

	h, err := hs.GetByJoinCode(ctx, "ABC234")
	if err != nil {
		t.Fatalf("get by join code: %v", err)
	}
	if h == nil || h.ID != "h1" {
		t.Fatalf("got %+v, want h1", h)
	}

	exists, err := hs.JoinCodeExists(ctx, "ABC234")
	if err != nil || !exists {
		t.Errorf("JoinCodeExists = %v, %v; want true", exists, err)
	}
	exists, err = hs.JoinCodeExists(ctx, "ZZZZZZ")
	if err != nil || exists {
		t.Errorf("JoinCodeExists = %v, %v; want false", exists, err)
	}

	missing, err := hs.GetByJoinCode(ctx, "ZZZZZZ")
	if err != nil {
		t.Fatalf("get by join code: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown code")
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs, _, _ := setupHouseholdTestDB(t)

	h, err := hs.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for nonexistent household")
	}
}

func TestUpdateHouseholdMembersAndChores(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createUser(t, us, "alice")
	bob := createUser(t, us, "bob")
	carol := createUser(t, us, "carol")

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", alice, bob)); err != nil {
		t.Fatalf("create household: %v", err)
	}

	h, err := hs.UpdateHousehold(ctx, "h1", func(h *model.Household) error {
		h.Members = append(h.Members[:1], model.Member{UserID: carol.ID})
		h.Chores = append(h.Chores,
			model.Chore{ID: "c1", Title: "One", Status: model.ChoreStatusPending, AssignedTo: &carol.ID},
			model.Chore{ID: "c2", Title: "Two", Status: model.ChoreStatusDone},
		)
		h.RotationIndex = 1
		return nil
	})
	if err != nil {
		t.Fatalf("update household: %v", err)
	}
	if h.Version != 2 {
		t.Errorf("version = %d, want 2", h.Version)
	}

	got, _ := hs.GetByID(ctx, "h1")
	ids := got.MemberIDs()
	if len(ids) != 2 || ids[0] != alice.ID || ids[1] != carol.ID {
		t.Errorf("members = %v, want [alice carol]", ids)
	}
	if got.RotationIndex != 1 {
		t.Errorf("rotation index = %d, want 1", got.RotationIndex)
	}
	if len(got.Chores) != 2 || got.Chores[0].ID != "c1" || got.Chores[1].Status != model.ChoreStatusDone {
		t.Errorf("chores = %+v", got.Chores)
	}

	b, _ := us.GetByID(ctx, bob.ID)
	if b.HouseholdID != nil {
		t.Error("removed member still references household")
	}
	c, _ := us.GetByID(ctx, carol.ID)
	if c.HouseholdID == nil || *c.HouseholdID != "h1" {
		t.Error("added member does not reference household")
	}

	// Reorder and drop a chore.
	_, err = hs.UpdateHousehold(ctx, "h1", func(h *model.Household) error {
		h.Chores = []model.Chore{h.Chores[1]}
		return nil
	})
	if err != nil {
		t.Fatalf("update household: %v", err)
	}
	got, _ = hs.GetByID(ctx, "h1")
	if len(got.Chores) != 1 || got.Chores[0].ID != "c2" {
		t.Errorf("chores = %+v, want only c2", got.Chores)
	}
}

func TestUpdateHouseholdRetriesOnConflict(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", createUser(t, us, "alice"))); err != nil {
		t.Fatalf("create household: %v", err)
	}

	calls := 0
	h, err := hs.UpdateHousehold(ctx, "h1", func(h *model.Household) error {
		calls++
		if calls == 1 {
			// A competing writer saves between our read and our write.
			_, err := hs.UpdateHousehold(ctx, "h1", func(other *model.Household) error {
				other.Chores = append(other.Chores, model.Chore{ID: "theirs", Title: "Theirs", Status: model.ChoreStatusPending})
				return nil
			})
			if err != nil {
				t.Fatalf("competing update: %v", err)
			}
		}
		h.Chores = append(h.Chores, model.Chore{ID: "ours", Title: "Ours", Status: model.ChoreStatusPending})
		return nil
	})
	if err != nil {
		t.Fatalf("update household: %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
	if len(h.Chores) != 2 || h.Chores[0].ID != "theirs" || h.Chores[1].ID != "ours" {
		t.Errorf("chores = %+v, want both writes kept", h.Chores)
	}
}

func TestUpdateHouseholdGivesUpAfterRepeatedConflicts(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", createUser(t, us, "alice"))); err != nil {
		t.Fatalf("create household: %v", err)
	}

	_, err := hs.UpdateHousehold(ctx, "h1", func(h *model.Household) error {
		if _, err := hs.UpdateHousehold(ctx, "h1", func(*model.Household) error { return nil }); err != nil {
			t.Fatalf("competing update: %v", err)
		}
		return nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUpdateHouseholdFnError(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", createUser(t, us, "alice"))); err != nil {
		t.Fatalf("create household: %v", err)
	}

	sentinel := errors.New("nope")
	_, err := hs.UpdateHousehold(ctx, "h1", func(h *model.Household) error {
		h.Name = "changed"
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("err = %v, want sentinel", err)
	}
	got, _ := hs.GetByID(ctx, "h1")
	if got.Name != "Home h1" || got.Version != 1 {
		t.Errorf("household changed after failed fn: %+v", got)
	}
}

func TestUpdateHouseholdNotFound(t *testing.T) {
	hs, _, _ := setupHouseholdTestDB(t)

	_, err := hs.UpdateHousehold(context.Background(), "missing", func(*model.Household) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateHouseholdRemovingLastMemberDeletes(t *testing.T) {
	hs, us, db := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createUser(t, us, "alice")

	h := newHousehold("h1", "ABC234", alice)
	h.Chores = []model.Chore{{ID: "c1", Title: "Dishes", Status: model.ChoreStatusPending}}
	if err := hs.Create(ctx, h); err != nil {
		t.Fatalf("create household: %v", err)
	}

	_, err := hs.UpdateHousehold(ctx, "h1", func(h *model.Household) error {
		h.Members = nil
		return nil
	})
	if err != nil {
		t.Fatalf("update household: %v", err)
	}

	if got, _ := hs.GetByID(ctx, "h1"); got != nil {
		t.Error("expected household to be deleted")
	}
	var chores, members int
	db.QueryRow(`SELECT COUNT(*) FROM chores`).Scan(&chores)
	db.QueryRow(`SELECT COUNT(*) FROM household_members`).Scan(&members)
	if chores != 0 || members != 0 {
		t.Errorf("leftover rows: chores=%d members=%d", chores, members)
	}
	u, _ := us.GetByID(ctx, alice.ID)
	if u.HouseholdID != nil {
		t.Error("user still references deleted household")
	}
}

func TestUpdateHouseholdChoreIDsAreScoped(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()

	other := newHousehold("h1", "ABC234", createUser(t, us, "alice"))
	other.Chores = []model.Chore{{ID: "c1", Title: "Theirs", Status: model.ChoreStatusPending}}
	if err := hs.Create(ctx, other); err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := hs.Create(ctx, newHousehold("h2", "XYZ789", createUser(t, us, "bob"))); err != nil {
		t.Fatalf("create household: %v", err)
	}

	// Writing a chore with a foreign ID must not touch the other household.
	_, err := hs.UpdateHousehold(ctx, "h2", func(h *model.Household) error {
		h.Chores = []model.Chore{{ID: "c1", Title: "Hijacked", Status: model.ChoreStatusDone}}
		return nil
	})
	if err != nil {
		t.Fatalf("update household: %v", err)
	}

	got, _ := hs.GetByID(ctx, "h1")
	if len(got.Chores) != 1 || got.Chores[0].Title != "Theirs" || got.Chores[0].Status != model.ChoreStatusPending {
		t.Errorf("foreign chore modified: %+v", got.Chores)
	}
}

func TestClearUserHousehold(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createUser(t, us, "alice")
	bob := createUser(t, us, "bob")

	if err := hs.Create(ctx, newHousehold("h1", "ABC234", alice, bob)); err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := hs.ClearUserHousehold(ctx, bob.ID); err != nil {
		t.Fatalf("clear user household: %v", err)
	}

	u, _ := us.GetByID(ctx, bob.ID)
	if u.HouseholdID != nil {
		t.Error("reference not cleared")
	}
	got, _ := hs.GetByID(ctx, "h1")
	if got.HasMember(bob.ID) {
		t.Error("membership row not removed")
	}
}
