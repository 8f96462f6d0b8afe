package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/flatmate/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var apartmentID sql.NullInt64
	err := scanner.Scan(&a.ID, &a.Username, &a.Name, &a.PasswordHash, &apartmentID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if apartmentID.Valid {
		a.ApartmentID = &apartmentID.Int64
	}
	return &a, nil
}

const accountCols = `id, username, name, password_hash, apartment_id, created_at, updated_at`

func (s *AccountStore) Create(username, name, passwordHash string) (*model.Account, error) {
	result, err := s.db.Exec(
		`INSERT INTO accounts (username, name, password_hash) VALUES (?, ?, ?)`,
		username, name, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByUsername(username string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return a, nil
}

func (s *AccountStore) Update(id int64, name string) (*model.Account, error) {
	_, err := s.db.Exec(
		`UPDATE accounts SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// ListByApartment returns the member accounts of an apartment ordered by id,
// which is also the admin-succession order.
func (s *AccountStore) ListByApartment(apartmentID int64) ([]model.Account, error) {
	rows, err := s.db.Query(
		`SELECT `+accountCols+` FROM accounts WHERE apartment_id = ? ORDER BY id ASC`,
		apartmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts by apartment: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
