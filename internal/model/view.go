package model

import "time"

// HouseholdView is the populated household returned to clients: members and
// chore assignees are resolved to display data.
type HouseholdView struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	JoinCode string       `json:"join_code"`
	Members  []MemberView `json:"members"`
	Chores   []ChoreView  `json:"chores"`
}

type MemberView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ChoreView struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Status     ChoreStatus `json:"status"`
	AssignedTo *MemberView `json:"assigned_to"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// View resolves member references into display data.
func (h *Household) View() HouseholdView {
	v := HouseholdView{
		ID:       h.ID,
		Name:     h.Name,
		JoinCode: h.JoinCode,
		Members:  make([]MemberView, 0, len(h.Members)),
		Chores:   make([]ChoreView, 0, len(h.Chores)),
	}

	byID := make(map[string]MemberView, len(h.Members))
	for _, m := range h.Members {
		mv := MemberView{ID: m.UserID, Name: m.Name, Email: m.Email}
		byID[m.UserID] = mv
		v.Members = append(v.Members, mv)
	}

	for _, c := range h.Chores {
		cv := ChoreView{
			ID:        c.ID,
			Title:     c.Title,
			Status:    c.Status,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		if c.AssignedTo != nil {
			if mv, ok := byID[*c.AssignedTo]; ok {
				cv.AssignedTo = &mv
			}
		}
		v.Chores = append(v.Chores, cv)
	}
	return v
}
