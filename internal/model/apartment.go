package model

import "time"

type Apartment struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AdminID   int64     `json:"admin_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApartmentView is an apartment with its member profiles resolved.
type ApartmentView struct {
	Apartment
	Members []Profile `json:"members"`
}
