package chore

import (
	"fmt"
	"strings"

	"github.com/dukerupert/chorewheel/internal/model"
)

// ParseStatus accepts exactly "pending" or "done".
func ParseStatus(s string) (model.ChoreStatus, error) {
	switch model.ChoreStatus(s) {
	case model.ChoreStatusPending, model.ChoreStatusDone:
		return model.ChoreStatus(s), nil
	}
	return "", fmt.Errorf("invalid status %q: use %q or %q", s, model.ChoreStatusPending, model.ChoreStatusDone)
}

// NormalizeTitle trims surrounding whitespace from a chore title.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// Pending returns the indexes of pending chores, in stored order.
func Pending(chores []model.Chore) []int {
	var idx []int
	for i, c := range chores {
		if c.IsPending() {
			idx = append(idx, i)
		}
	}
	return idx
}
