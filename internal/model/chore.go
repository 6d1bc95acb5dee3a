package model

import "time"

type ChoreStatus string

const (
	ChoreStatusPending ChoreStatus = "pending"
	ChoreStatusDone    ChoreStatus = "done"
)

type Chore struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Status     ChoreStatus `json:"status"`
	AssignedTo *string     `json:"assigned_to"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (c Chore) IsPending() bool {
	return c.Status == ChoreStatusPending
}
