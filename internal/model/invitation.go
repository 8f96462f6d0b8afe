package model

import "time"

type Invitation struct {
	ID          int64     `json:"id"`
	InvitorID   int64     `json:"invitor_id"`
	InviteeID   int64     `json:"invitee_id"`
	ApartmentID int64     `json:"apartment_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// InvitationView resolves the parties and apartment for display.
type InvitationView struct {
	ID        int64     `json:"id"`
	Invitor   Profile   `json:"invitor"`
	Invitee   Profile   `json:"invitee"`
	Apartment Apartment `json:"apartment"`
}
