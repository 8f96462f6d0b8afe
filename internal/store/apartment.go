package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/flatmate/internal/model"
)

// ApartmentStore owns apartments and membership. Membership is the accounts
// table's apartment_id back-reference; the admin must always be a member and
// an apartment with no members is deleted.
type ApartmentStore struct {
	db *sql.DB
}

func NewApartmentStore(db *sql.DB) *ApartmentStore {
	return &ApartmentStore{db: db}
}

func scanApartment(scanner interface{ Scan(...any) error }) (*model.Apartment, error) {
	var a model.Apartment
	err := scanner.Scan(&a.ID, &a.Name, &a.AdminID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const apartmentCols = `id, name, admin_id, created_at, updated_at`

// Create makes a new apartment with the creator as sole member and admin.
// Pending invitations addressed to the creator are discarded: they now have
// an apartment of their own.
func (s *ApartmentStore) Create(name string, creatorID int64) (*model.Apartment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing sql.NullInt64
	if err := tx.QueryRow(`SELECT apartment_id FROM accounts WHERE id = ?`, creatorID).Scan(&existing); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: account %d", ErrNotFound, creatorID)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	if existing.Valid {
		return nil, fmt.Errorf("%w: already a member of an apartment", ErrInvalidState)
	}

	result, err := tx.Exec(`INSERT INTO apartments (name, admin_id) VALUES (?, ?)`, name, creatorID)
	if err != nil {
		return nil, fmt.Errorf("insert apartment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE accounts SET apartment_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id, creatorID,
	); err != nil {
		return nil, fmt.Errorf("set membership: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM invitations WHERE invitee_id = ?`, creatorID); err != nil {
		return nil, fmt.Errorf("discard invitations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *ApartmentStore) GetByID(id int64) (*model.Apartment, error) {
	row := s.db.QueryRow(`SELECT `+apartmentCols+` FROM apartments WHERE id = ?`, id)
	a, err := scanApartment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get apartment: %w", err)
	}
	return a, nil
}

func (s *ApartmentStore) Update(id int64, name string) (*model.Apartment, error) {
	_, err := s.db.Exec(
		`UPDATE apartments SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update apartment: %w", err)
	}
	return s.GetByID(id)
}

// GetView returns the apartment with its member profiles, ordered by id.
func (s *ApartmentStore) GetView(id int64) (*model.ApartmentView, error) {
	apartment, err := s.GetByID(id)
	if err != nil || apartment == nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, username, name FROM accounts WHERE apartment_id = ? ORDER BY id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	view := model.ApartmentView{Apartment: *apartment}
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.Name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		view.Members = append(view.Members, p)
	}
	return &view, rows.Err()
}

// MemberIDs returns the ids of the apartment's current members, ascending.
func (s *ApartmentStore) MemberIDs(id int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM accounts WHERE apartment_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var memberID int64
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, memberID)
	}
	return ids, rows.Err()
}

func (s *ApartmentStore) SetAdmin(id, accountID int64) error {
	_, err := s.db.Exec(
		`UPDATE apartments SET admin_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		accountID, id,
	)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

// Delete tears down an apartment: every member's tasks go first (requests and
// assignments cascade), then memberships are cleared and the apartment row
// removed, all in one transaction.
func (s *ApartmentStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM tasks WHERE creator_id IN (SELECT id FROM accounts WHERE apartment_id = ?)`,
		id,
	); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE accounts SET apartment_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE apartment_id = ?`,
		id,
	); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM apartments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete apartment: %w", err)
	}
	return tx.Commit()
}

// ReconcileResult summarizes what RemoveFromApartment did, for the
// notification step that follows the commit.
type ReconcileResult struct {
	ApartmentDeleted bool
	NewAdminID       *int64
	RemainingIDs     []int64
	DeletedTaskIDs   []int64
}

// RemoveFromApartment ends an account's membership and restores every task
// invariant, as one transaction:
//
//  1. Requested regime: a task whose only remaining request belongs to the
//     leaver is deleted; otherwise the leaver's request is removed and the
//     survivors reset to pending, since the partial consensus is moot.
//  2. Assigned regime: a task assigned only to the leaver is deleted;
//     otherwise the leaver's assignment is removed and higher orders shift
//     down one, keeping the rotation a dense zero-based permutation.
//  3. The leaver's apartment_id is cleared.
//  4. An emptied apartment is deleted; otherwise a departing admin is
//     succeeded by the remaining member with the lowest id.
//
// Removing an account that is not a member fails with ErrInvalidArgument
// before anything is touched.
func (s *ApartmentStore) RemoveFromApartment(apartmentID, leaverID int64) (*ReconcileResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	apartment, err := scanApartment(tx.QueryRow(`SELECT `+apartmentCols+` FROM apartments WHERE id = ?`, apartmentID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: apartment %d", ErrNotFound, apartmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get apartment: %w", err)
	}

	memberRows, err := tx.Query(`SELECT id FROM accounts WHERE apartment_id = ? ORDER BY id ASC`, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	var memberIDs []int64
	isMember := false
	for memberRows.Next() {
		var id int64
		if err := memberRows.Scan(&id); err != nil {
			memberRows.Close()
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		memberIDs = append(memberIDs, id)
		if id == leaverID {
			isMember = true
		}
	}
	memberRows.Close()
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	if !isMember {
		return nil, fmt.Errorf("%w: account %d is not a member of this apartment", ErrInvalidArgument, leaverID)
	}

	result := &ReconcileResult{}

	// Requested-regime cleanup.
	reqRows, err := tx.Query(
		`SELECT r.task_id, (SELECT COUNT(*) FROM task_requests r2 WHERE r2.task_id = r.task_id)
		 FROM task_requests r WHERE r.assignee_id = ?`,
		leaverID,
	)
	if err != nil {
		return nil, fmt.Errorf("list leaver requests: %w", err)
	}
	type taskCount struct {
		taskID int64
		total  int
	}
	var requested []taskCount
	for reqRows.Next() {
		var tc taskCount
		if err := reqRows.Scan(&tc.taskID, &tc.total); err != nil {
			reqRows.Close()
			return nil, fmt.Errorf("scan leaver request: %w", err)
		}
		requested = append(requested, tc)
	}
	reqRows.Close()
	if err := reqRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaver requests: %w", err)
	}

	for _, tc := range requested {
		if tc.total == 1 {
			// No other candidate assignee remains.
			if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, tc.taskID); err != nil {
				return nil, fmt.Errorf("delete orphaned task: %w", err)
			}
			result.DeletedTaskIDs = append(result.DeletedTaskIDs, tc.taskID)
			continue
		}
		if _, err := tx.Exec(
			`UPDATE task_requests SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE task_id = ?`,
			model.RequestPending, tc.taskID,
		); err != nil {
			return nil, fmt.Errorf("reset task requests: %w", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM task_requests WHERE assignee_id = ?`, leaverID); err != nil {
		return nil, fmt.Errorf("delete leaver requests: %w", err)
	}

	// Assigned-regime cleanup.
	asgRows, err := tx.Query(
		`SELECT a.task_id, a.sort_order, (SELECT COUNT(*) FROM task_assignments a2 WHERE a2.task_id = a.task_id)
		 FROM task_assignments a WHERE a.assignee_id = ?`,
		leaverID,
	)
	if err != nil {
		return nil, fmt.Errorf("list leaver assignments: %w", err)
	}
	type assignmentRow struct {
		taskID int64
		order  int
		total  int
	}
	var assigned []assignmentRow
	for asgRows.Next() {
		var ar assignmentRow
		if err := asgRows.Scan(&ar.taskID, &ar.order, &ar.total); err != nil {
			asgRows.Close()
			return nil, fmt.Errorf("scan leaver assignment: %w", err)
		}
		assigned = append(assigned, ar)
	}
	asgRows.Close()
	if err := asgRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaver assignments: %w", err)
	}

	for _, ar := range assigned {
		if ar.total == 1 {
			if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, ar.taskID); err != nil {
				return nil, fmt.Errorf("delete orphaned task: %w", err)
			}
			result.DeletedTaskIDs = append(result.DeletedTaskIDs, ar.taskID)
			continue
		}
		// Close the gap the departing assignment leaves behind.
		if _, err := tx.Exec(
			`UPDATE task_assignments SET sort_order = sort_order - 1 WHERE task_id = ? AND sort_order > ?`,
			ar.taskID, ar.order,
		); err != nil {
			return nil, fmt.Errorf("shift sort orders: %w", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM task_assignments WHERE assignee_id = ?`, leaverID); err != nil {
		return nil, fmt.Errorf("delete leaver assignments: %w", err)
	}

	// Membership mutation.
	if _, err := tx.Exec(
		`UPDATE accounts SET apartment_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		leaverID,
	); err != nil {
		return nil, fmt.Errorf("clear membership: %w", err)
	}

	// Apartment-level consequence.
	for _, id := range memberIDs {
		if id != leaverID {
			result.RemainingIDs = append(result.RemainingIDs, id)
		}
	}
	if len(result.RemainingIDs) == 0 {
		if _, err := tx.Exec(`DELETE FROM apartments WHERE id = ?`, apartmentID); err != nil {
			return nil, fmt.Errorf("delete apartment: %w", err)
		}
		result.ApartmentDeleted = true
	} else if apartment.AdminID == leaverID {
		successor := result.RemainingIDs[0]
		if _, err := tx.Exec(
			`UPDATE apartments SET admin_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			successor, apartmentID,
		); err != nil {
			return nil, fmt.Errorf("promote admin: %w", err)
		}
		result.NewAdminID = &successor
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}
