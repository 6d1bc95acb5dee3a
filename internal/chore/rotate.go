package chore

import (
	"errors"

	"github.com/dukerupert/chorewheel/internal/model"
)

var (
	ErrNoMembers       = errors.New("no members in household to rotate chores")
	ErrNoPendingChores = errors.New("no pending chores to rotate")
)

// Rotation is the outcome of Rotate.
type Rotation struct {
	// Assigned is the number of pending chores that received an assignee.
	Assigned int
	// NextIndex is the cursor to store for the next rotation.
	NextIndex int
}

// Rotate hands out the pending chores round-robin over members, starting at
// members[cursor] and continuing in stored order, wrapping as needed. Done
// chores are not touched. The returned cursor advances by exactly one member
// per call, no matter how many chores were assigned.
//
// chores is modified in place; on error nothing is modified.
func Rotate(chores []model.Chore, members []string, cursor int) (Rotation, error) {
	n := len(members)
	if n == 0 {
		return Rotation{}, ErrNoMembers
	}

	pending := Pending(chores)
	if len(pending) == 0 {
		return Rotation{}, ErrNoPendingChores
	}

	start := NormalizeIndex(cursor, n)
	for i, idx := range pending {
		assignee := members[(start+i)%n]
		chores[idx].AssignedTo = &assignee
	}

	return Rotation{
		Assigned:  len(pending),
		NextIndex: (start + 1) % n,
	}, nil
}

// NormalizeIndex maps any cursor into [0, memberCount). It returns 0 when
// there are no members.
func NormalizeIndex(cursor, memberCount int) int {
	if memberCount <= 0 {
		return 0
	}
	cursor %= memberCount
	if cursor < 0 {
		cursor += memberCount
	}
	return cursor
}
