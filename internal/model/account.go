package model

import "time"

type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	ApartmentID  *int64    `json:"apartment_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the member-visible projection of an account.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (a *Account) Profile() Profile {
	return Profile{ID: a.ID, Username: a.Username, Name: a.Name}
}
