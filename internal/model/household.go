package model

import "time"

// Household is the aggregate root for members and chores. Members are kept in
// join order and Chores in insertion order; both orders drive rotation.
type Household struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	JoinCode      string    `json:"join_code"`
	RotationIndex int       `json:"rotation_index"`
	Version       int64     `json:"-"`
	Members       []Member  `json:"members"`
	Chores        []Chore   `json:"chores"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Member struct {
	UserID   string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberIDs returns the member user ids in join order.
func (h *Household) MemberIDs() []string {
	ids := make([]string, len(h.Members))
	for i, m := range h.Members {
		ids[i] = m.UserID
	}
	return ids
}

func (h *Household) HasMember(userID string) bool {
	return h.MemberIndex(userID) >= 0
}

func (h *Household) MemberIndex(userID string) int {
	for i, m := range h.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// Chore returns a pointer into h.Chores, or nil.
func (h *Household) Chore(id string) *Chore {
	for i := range h.Chores {
		if h.Chores[i].ID == id {
			return &h.Chores[i]
		}
	}
	return nil
}
