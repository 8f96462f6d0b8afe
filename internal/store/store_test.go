package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/flatmate/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createAccount(t *testing.T, as *AccountStore, username string) int64 {
	t.Helper()
	a, err := as.Create(username, username, "hash")
	if err != nil {
		t.Fatalf("create account %s: %v", username, err)
	}
	return a.ID
}

// joinApartment adds an existing account to an apartment directly, the way an
// accepted invitation would.
func joinApartment(t *testing.T, db *sql.DB, apartmentID, accountID int64) {
	t.Helper()
	if _, err := db.Exec(`UPDATE accounts SET apartment_id = ? WHERE id = ?`, apartmentID, accountID); err != nil {
		t.Fatalf("join apartment: %v", err)
	}
}

var taskStart = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
var taskEnd = taskStart.AddDate(0, 3, 0)
