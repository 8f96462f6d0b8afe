package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/flatmate/internal/model"
)

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	err := scanner.Scan(&inv.ID, &inv.InvitorID, &inv.InviteeID, &inv.ApartmentID, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

const invitationCols = `id, invitor_id, invitee_id, apartment_id, created_at`

func (s *InvitationStore) Create(invitorID, inviteeID, apartmentID int64) (*model.Invitation, error) {
	result, err := s.db.Exec(
		`INSERT INTO invitations (invitor_id, invitee_id, apartment_id) VALUES (?, ?, ?)`,
		invitorID, inviteeID, apartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InvitationStore) GetByID(id int64) (*model.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

func (s *InvitationStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM invitations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return nil
}

const invitationViewQuery = `
	SELECT i.id,
	       invitor.id, invitor.username, invitor.name,
	       invitee.id, invitee.username, invitee.name,
	       ` + "ap.id, ap.name, ap.admin_id, ap.created_at, ap.updated_at" + `
	FROM invitations i
	JOIN accounts invitor ON invitor.id = i.invitor_id
	JOIN accounts invitee ON invitee.id = i.invitee_id
	JOIN apartments ap ON ap.id = i.apartment_id`

func scanInvitationView(scanner interface{ Scan(...any) error }) (*model.InvitationView, error) {
	var v model.InvitationView
	err := scanner.Scan(
		&v.ID,
		&v.Invitor.ID, &v.Invitor.Username, &v.Invitor.Name,
		&v.Invitee.ID, &v.Invitee.Username, &v.Invitee.Name,
		&v.Apartment.ID, &v.Apartment.Name, &v.Apartment.AdminID,
		&v.Apartment.CreatedAt, &v.Apartment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *InvitationStore) GetView(id int64) (*model.InvitationView, error) {
	row := s.db.QueryRow(invitationViewQuery+` WHERE i.id = ?`, id)
	v, err := scanInvitationView(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation view: %w", err)
	}
	return v, nil
}

func (s *InvitationStore) listViews(query string, arg int64) ([]model.InvitationView, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var views []model.InvitationView
	for rows.Next() {
		v, err := scanInvitationView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation view: %w", err)
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

func (s *InvitationStore) ListSentBy(accountID int64) ([]model.InvitationView, error) {
	return s.listViews(invitationViewQuery+` WHERE i.invitor_id = ? ORDER BY i.id ASC`, accountID)
}

func (s *InvitationStore) ListReceivedBy(accountID int64) ([]model.InvitationView, error) {
	return s.listViews(invitationViewQuery+` WHERE i.invitee_id = ? ORDER BY i.id ASC`, accountID)
}

// Accept joins the invitee to the invitation's apartment in one transaction:
// membership is set, the accepted invitation removed, and the invitee's other
// pending invitations withdrawn. The withdrawn invitations are returned so
// their invitors can be told.
func (s *InvitationStore) Accept(id int64) ([]model.InvitationView, error) {
	inv, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: invitation %d", ErrNotFound, id)
	}

	withdrawn, err := s.listViews(invitationViewQuery+` WHERE i.invitee_id = ? ORDER BY i.id ASC`, inv.InviteeID)
	if err != nil {
		return nil, err
	}
	others := withdrawn[:0]
	for _, v := range withdrawn {
		if v.ID != id {
			others = append(others, v)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE accounts SET apartment_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		inv.ApartmentID, inv.InviteeID,
	); err != nil {
		return nil, fmt.Errorf("set membership: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM invitations WHERE invitee_id = ?`, inv.InviteeID); err != nil {
		return nil, fmt.Errorf("delete invitations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return others, nil
}
