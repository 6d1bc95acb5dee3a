package model

import "time"

type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	HouseholdID *string   `json:"household"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u User) InHousehold() bool {
	return u.HouseholdID != nil && *u.HouseholdID != ""
}
