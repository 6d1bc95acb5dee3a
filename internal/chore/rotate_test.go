package chore

import (
	"errors"
	"testing"

	"github.com/dukerupert/chorewheel/internal/model"
)

func pendingChores(ids ...string) []model.Chore {
	chores := make([]model.Chore, len(ids))
	for i, id := range ids {
		chores[i] = model.Chore{ID: id, Title: id, Status: model.ChoreStatusPending}
	}
	return chores
}

func assignees(t *testing.T, chores []model.Chore) []string {
	t.Helper()
	out := make([]string, len(chores))
	for i, c := range chores {
		if c.AssignedTo == nil {
			out[i] = ""
			continue
		}
		out[i] = *c.AssignedTo
	}
	return out
}

func assertAssignees(t *testing.T, chores []model.Chore, want ...string) {
	t.Helper()
	got := assignees(t, chores)
	if len(got) != len(want) {
		t.Fatalf("got %d chores, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chore %s assigned to %q, want %q", chores[i].ID, got[i], want[i])
		}
	}
}

func TestRotateRoundRobin(t *testing.T) {
	members := []string{"A", "B", "C"}
	chores := pendingChores("c1", "c2", "c3", "c4")

	r, err := Rotate(chores, members, 0)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	assertAssignees(t, chores, "A", "B", "C", "A")
	if r.NextIndex != 1 {
		t.Errorf("NextIndex = %d, want 1", r.NextIndex)
	}
	if r.Assigned != 4 {
		t.Errorf("Assigned = %d, want 4", r.Assigned)
	}

	r, err = Rotate(chores, members, r.NextIndex)
	if err != nil {
		t.Fatalf("second rotate: %v", err)
	}
	assertAssignees(t, chores, "B", "C", "A", "B")
	if r.NextIndex != 2 {
		t.Errorf("NextIndex = %d, want 2", r.NextIndex)
	}

	r, err = Rotate(chores, members, r.NextIndex)
	if err != nil {
		t.Fatalf("third rotate: %v", err)
	}
	assertAssignees(t, chores, "C", "A", "B", "C")
	if r.NextIndex != 0 {
		t.Errorf("NextIndex = %d, want 0 after wrapping", r.NextIndex)
	}
}

func TestRotateSkipsDoneChores(t *testing.T) {
	done := "Z"
	chores := []model.Chore{
		{ID: "c1", Status: model.ChoreStatusPending},
		{ID: "c2", Status: model.ChoreStatusDone, AssignedTo: &done},
		{ID: "c3", Status: model.ChoreStatusPending},
		{ID: "c4", Status: model.ChoreStatusDone},
	}

	r, err := Rotate(chores, []string{"A", "B"}, 1)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	assertAssignees(t, chores, "B", "Z", "A", "")
	if r.Assigned != 2 {
		t.Errorf("Assigned = %d, want 2", r.Assigned)
	}
	if r.NextIndex != 0 {
		t.Errorf("NextIndex = %d, want 0", r.NextIndex)
	}
}

func TestRotateSingleMember(t *testing.T) {
	chores := pendingChores("c1", "c2", "c3")

	for i := 0; i < 3; i++ {
		r, err := Rotate(chores, []string{"A"}, 0)
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		assertAssignees(t, chores, "A", "A", "A")
		if r.NextIndex != 0 {
			t.Errorf("NextIndex = %d, want 0", r.NextIndex)
		}
	}
}

func TestRotateOutOfRangeCursor(t *testing.T) {
	chores := pendingChores("c1", "c2")

	r, err := Rotate(chores, []string{"A", "B"}, 5)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	assertAssignees(t, chores, "B", "A")
	if r.NextIndex != 0 {
		t.Errorf("NextIndex = %d, want 0", r.NextIndex)
	}
}

func TestRotateNoMembers(t *testing.T) {
	chores := pendingChores("c1")
	_, err := Rotate(chores, nil, 0)
	if !errors.Is(err, ErrNoMembers) {
		t.Fatalf("err = %v, want ErrNoMembers", err)
	}
	if chores[0].AssignedTo != nil {
		t.Error("chore should not be assigned on error")
	}
}

func TestRotateNoPendingChores(t *testing.T) {
	chores := []model.Chore{{ID: "c1", Status: model.ChoreStatusDone}}
	_, err := Rotate(chores, []string{"A"}, 0)
	if !errors.Is(err, ErrNoPendingChores) {
		t.Fatalf("err = %v, want ErrNoPendingChores", err)
	}
}

func TestNormalizeIndex(t *testing.T) {
	tests := []struct {
		cursor, count, want int
	}{
		{0, 3, 0},
		{2, 3, 2},
		{3, 3, 0},
		{7, 3, 1},
		{-1, 3, 2},
		{4, 0, 0},
	}
	for _, tt := range tests {
		if got := NormalizeIndex(tt.cursor, tt.count); got != tt.want {
			t.Errorf("NormalizeIndex(%d, %d) = %d, want %d", tt.cursor, tt.count, got, tt.want)
		}
	}
}
