package database

import "testing"

func TestOpenEnforcesForeignKeys(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var enabled int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("foreign_keys = %d, want 1", enabled)
	}
}

func TestOpenCascadesTaskChildren(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	res, err := db.Exec(`INSERT INTO accounts (username, name, password_hash) VALUES ('alice', 'Alice', 'hash')`)
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}
	accountID, _ := res.LastInsertId()

	res, err = db.Exec(
		`INSERT INTO tasks (name, start_date, end_date, creator_id) VALUES ('dishes', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?)`,
		accountID,
	)
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	taskID, _ := res.LastInsertId()

	if _, err := db.Exec(`INSERT INTO task_requests (task_id, assignee_id) VALUES (?, ?)`, taskID, accountID); err != nil {
		t.Fatalf("insert request: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO task_assignments (task_id, assignee_id, sort_order) VALUES (?, ?, 0)`, taskID, accountID); err != nil {
		t.Fatalf("insert assignment: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	var requests, assignments int
	if err := db.QueryRow(`SELECT COUNT(*) FROM task_requests WHERE task_id = ?`, taskID).Scan(&requests); err != nil {
		t.Fatalf("count requests: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM task_assignments WHERE task_id = ?`, taskID).Scan(&assignments); err != nil {
		t.Fatalf("count assignments: %v", err)
	}
	if requests != 0 || assignments != 0 {
		t.Errorf("deleting a task must cascade: %d requests, %d assignments remain", requests, assignments)
	}
}
