package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/rotation"
)

// TaskStore owns tasks and their request/assignment rows. A task is always in
// exactly one regime: requested (only task_requests rows) or assigned (only
// task_assignments rows). Every multi-row mutation here commits as one
// transaction so no reader ever observes a task in both regimes.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	err := scanner.Scan(
		&t.ID, &t.Name, &t.Description, &t.Frequency, &t.Difficulty,
		&t.Start, &t.End, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanRequest(scanner interface{ Scan(...any) error }) (*model.TaskRequest, error) {
	var r model.TaskRequest
	err := scanner.Scan(&r.ID, &r.TaskID, &r.AssigneeID, &r.State, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.TaskAssignment, error) {
	var a model.TaskAssignment
	err := scanner.Scan(&a.ID, &a.TaskID, &a.AssigneeID, &a.Order, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const taskCols = `id, name, description, frequency, difficulty, start_date, end_date, creator_id, created_at, updated_at`
const requestCols = `id, task_id, assignee_id, state, created_at, updated_at`
const assignmentCols = `id, task_id, assignee_id, sort_order, created_at`

// --- Task methods ---

// Create inserts a task and seeds one pending request per assignee in a
// single transaction. Assignee membership is validated by the caller.
func (s *TaskStore) Create(name, description string, frequency, difficulty int, start, end time.Time, creatorID int64, assigneeIDs []int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO tasks (name, description, frequency, difficulty, start_date, end_date, creator_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, description, frequency, difficulty, start.UTC(), end.UTC(), creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, assigneeID := range assigneeIDs {
		if _, err := tx.Exec(
			`INSERT INTO task_requests (task_id, assignee_id) VALUES (?, ?)`,
			id, assigneeID,
		); err != nil {
			return nil, fmt.Errorf("insert task request: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) Update(id int64, name, description string, frequency, difficulty int, start, end time.Time) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET name = ?, description = ?, frequency = ?, difficulty = ?, start_date = ?, end_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, frequency, difficulty, start.UTC(), end.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a task; its requests and assignments go with it via cascade.
func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// --- Request methods ---

func (s *TaskStore) GetRequestByID(id int64) (*model.TaskRequest, error) {
	row := s.db.QueryRow(`SELECT `+requestCols+` FROM task_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task request: %w", err)
	}
	return r, nil
}

func (s *TaskStore) ListRequestsByTask(taskID int64) ([]model.TaskRequest, error) {
	rows, err := s.db.Query(
		`SELECT `+requestCols+` FROM task_requests WHERE task_id = ? ORDER BY assignee_id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task requests: %w", err)
	}
	defer rows.Close()

	var requests []model.TaskRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// SetRequestState records an assignee's decision on their own request. Only
// the owning assignee may transition a request; this is the single entry
// point for individual decisions. It never converts the task — the caller
// runs ConvertIfAllAccepted immediately afterward.
func (s *TaskStore) SetRequestState(requestID, callerID int64, state string) (*model.TaskRequest, error) {
	if !model.ValidRequestState(state) {
		return nil, fmt.Errorf("%w: state must be pending, accepted or rejected", ErrInvalidArgument)
	}

	req, err := s.GetRequestByID(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: task request %d", ErrNotFound, requestID)
	}
	if req.AssigneeID != callerID {
		return nil, fmt.Errorf("%w: request belongs to another member", ErrForbidden)
	}

	_, err = s.db.Exec(
		`UPDATE task_requests SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		state, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task request: %w", err)
	}
	return s.GetRequestByID(requestID)
}

// ConvertIfAllAccepted converts a task from the requested regime to the
// assigned regime when every request for it is accepted. Conversion and the
// unanimity check run in one transaction, so concurrent accepts produce
// exactly one conversion: the loser of the race sees an empty request set
// and no-ops. Returns the created assignments, or nil when nothing happened.
func (s *TaskStore) ConvertIfAllAccepted(taskID int64) ([]model.TaskAssignment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT assignee_id, state FROM task_requests WHERE task_id = ?`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("load task requests: %w", err)
	}

	var assigneeIDs []int64
	allAccepted := true
	for rows.Next() {
		var assigneeID int64
		var state string
		if err := rows.Scan(&assigneeID, &state); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task request: %w", err)
		}
		assigneeIDs = append(assigneeIDs, assigneeID)
		if state != model.RequestAccepted {
			allAccepted = false
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task requests: %w", err)
	}

	if len(assigneeIDs) == 0 || !allAccepted {
		return nil, nil
	}

	for i, assigneeID := range rotation.ConversionOrder(assigneeIDs) {
		if _, err := tx.Exec(
			`INSERT INTO task_assignments (task_id, assignee_id, sort_order) VALUES (?, ?, ?)`,
			taskID, assigneeID, i,
		); err != nil {
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM task_requests WHERE task_id = ?`, taskID); err != nil {
		return nil, fmt.Errorf("delete task requests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.ListAssignmentsByTask(taskID)
}

// --- Assignment methods ---

func (s *TaskStore) ListAssignmentsByTask(taskID int64) ([]model.TaskAssignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentCols+` FROM task_assignments WHERE task_id = ? ORDER BY sort_order ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.TaskAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// ReorderAssignments rewrites the rotation of an assigned task. The ordered
// assignee ids must be exactly the current assignment set; the check runs
// inside the transaction so a reorder racing a member departure is rejected
// rather than leaving a gapped order. The rewrite is total: position i in
// orderedAssigneeIDs becomes sort_order i.
func (s *TaskStore) ReorderAssignments(taskID int64, orderedAssigneeIDs []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT assignee_id FROM task_assignments WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	current := make(map[int64]bool)
	for rows.Next() {
		var assigneeID int64
		if err := rows.Scan(&assigneeID); err != nil {
			rows.Close()
			return fmt.Errorf("scan assignment: %w", err)
		}
		current[assigneeID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate assignments: %w", err)
	}

	if len(current) == 0 {
		return fmt.Errorf("%w: task hasn't been assigned to anyone", ErrInvalidState)
	}
	if len(orderedAssigneeIDs) != len(current) {
		return fmt.Errorf("%w: order must contain all current assignees", ErrInvalidArgument)
	}
	seen := make(map[int64]bool, len(orderedAssigneeIDs))
	for _, assigneeID := range orderedAssigneeIDs {
		if !current[assigneeID] || seen[assigneeID] {
			return fmt.Errorf("%w: order must contain all current assignees", ErrInvalidArgument)
		}
		seen[assigneeID] = true
	}

	for i, assigneeID := range orderedAssigneeIDs {
		if _, err := tx.Exec(
			`UPDATE task_assignments SET sort_order = ? WHERE task_id = ? AND assignee_id = ?`,
			i, taskID, assigneeID,
		); err != nil {
			return fmt.Errorf("update sort order: %w", err)
		}
	}
	return tx.Commit()
}

// UpdateAssignees rebuilds the request set of a task from a new assignee
// subset. Any existing assignments are dropped (the task returns to the
// requested regime), requests for removed assignees are deleted, surviving
// requests reset to pending, and new assignees get fresh pending requests.
func (s *TaskStore) UpdateAssignees(taskID int64, assigneeIDs []int64) error {
	if len(assigneeIDs) == 0 {
		return fmt.Errorf("%w: at least one assignee is required", ErrInvalidArgument)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_assignments WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}

	rows, err := tx.Query(`SELECT assignee_id FROM task_requests WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("load task requests: %w", err)
	}
	existing := make(map[int64]bool)
	for rows.Next() {
		var assigneeID int64
		if err := rows.Scan(&assigneeID); err != nil {
			rows.Close()
			return fmt.Errorf("scan task request: %w", err)
		}
		existing[assigneeID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate task requests: %w", err)
	}

	wanted := make(map[int64]bool, len(assigneeIDs))
	for _, assigneeID := range assigneeIDs {
		wanted[assigneeID] = true
	}

	for assigneeID := range existing {
		if !wanted[assigneeID] {
			if _, err := tx.Exec(
				`DELETE FROM task_requests WHERE task_id = ? AND assignee_id = ?`,
				taskID, assigneeID,
			); err != nil {
				return fmt.Errorf("delete task request: %w", err)
			}
		}
	}
	if _, err := tx.Exec(
		`UPDATE task_requests SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE task_id = ?`,
		model.RequestPending, taskID,
	); err != nil {
		return fmt.Errorf("reset task requests: %w", err)
	}
	for _, assigneeID := range assigneeIDs {
		if existing[assigneeID] {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO task_requests (task_id, assignee_id) VALUES (?, ?)`,
			taskID, assigneeID,
		); err != nil {
			return fmt.Errorf("insert task request: %w", err)
		}
	}
	return tx.Commit()
}

// --- View queries ---

func (s *TaskStore) ListRequestViewsByTask(taskID int64) ([]model.RequestView, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.state, a.id, a.username, a.name
		 FROM task_requests r
		 JOIN accounts a ON a.id = r.assignee_id
		 WHERE r.task_id = ?
		 ORDER BY r.assignee_id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list request views: %w", err)
	}
	defer rows.Close()

	var views []model.RequestView
	for rows.Next() {
		var v model.RequestView
		if err := rows.Scan(&v.ID, &v.State, &v.Assignee.ID, &v.Assignee.Username, &v.Assignee.Name); err != nil {
			return nil, fmt.Errorf("scan request view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *TaskStore) ListAssignmentViewsByTask(taskID int64) ([]model.AssignmentView, error) {
	rows, err := s.db.Query(
		`SELECT t.id, t.sort_order, a.id, a.username, a.name
		 FROM task_assignments t
		 JOIN accounts a ON a.id = t.assignee_id
		 WHERE t.task_id = ?
		 ORDER BY t.sort_order ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignment views: %w", err)
	}
	defer rows.Close()

	var views []model.AssignmentView
	for rows.Next() {
		var v model.AssignmentView
		if err := rows.Scan(&v.ID, &v.Order, &v.Assignee.ID, &v.Assignee.Username, &v.Assignee.Name); err != nil {
			return nil, fmt.Errorf("scan assignment view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListRequestsForAssignee returns every requested-regime task the account is
// a candidate for, paired with the account's own request.
func (s *TaskStore) ListRequestsForAssignee(accountID int64) ([]model.TaskRequests, error) {
	rows, err := s.db.Query(
		`SELECT t.id, t.name, t.description, t.frequency, t.difficulty, t.start_date, t.end_date, t.creator_id, t.created_at, t.updated_at,
		        r.id, r.task_id, r.assignee_id, r.state, r.created_at, r.updated_at, a.username, a.name
		 FROM task_requests r
		 JOIN tasks t ON t.id = r.task_id
		 JOIN accounts a ON a.id = r.assignee_id
		 WHERE r.assignee_id = ?
		 ORDER BY t.id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests for assignee: %w", err)
	}
	defer rows.Close()

	var groups []model.TaskRequests
	for rows.Next() {
		var t model.Task
		var r model.TaskRequest
		var username, name string
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Frequency, &t.Difficulty,
			&t.Start, &t.End, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt,
			&r.ID, &r.TaskID, &r.AssigneeID, &r.State, &r.CreatedAt, &r.UpdatedAt,
			&username, &name,
		); err != nil {
			return nil, fmt.Errorf("scan request row: %w", err)
		}
		groups = append(groups, model.TaskRequests{
			Task: t,
			Requests: []model.RequestView{{
				ID:       r.ID,
				State:    r.State,
				Assignee: model.Profile{ID: r.AssigneeID, Username: username, Name: name},
			}},
		})
	}
	return groups, rows.Err()
}

// ListAssignmentsForAssignee returns every assigned-regime task the account
// participates in, paired with the account's own assignment.
func (s *TaskStore) ListAssignmentsForAssignee(accountID int64) ([]model.TaskAssignments, error) {
	rows, err := s.db.Query(
		`SELECT t.id, t.name, t.description, t.frequency, t.difficulty, t.start_date, t.end_date, t.creator_id, t.created_at, t.updated_at,
		        s.id, s.sort_order
		 FROM task_assignments s
		 JOIN tasks t ON t.id = s.task_id
		 WHERE s.assignee_id = ?
		 ORDER BY t.id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments for assignee: %w", err)
	}
	defer rows.Close()

	var groups []model.TaskAssignments
	for rows.Next() {
		var t model.Task
		var v model.AssignmentView
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Frequency, &t.Difficulty,
			&t.Start, &t.End, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt,
			&v.ID, &v.Order,
		); err != nil {
			return nil, fmt.Errorf("scan assignment row: %w", err)
		}
		v.Assignee = model.Profile{ID: accountID}
		groups = append(groups, model.TaskAssignments{Task: t, Assignments: []model.AssignmentView{v}})
	}
	return groups, rows.Err()
}
