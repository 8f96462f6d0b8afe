package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/dukerupert/flatmate/internal/model"
)

func setupApartmentTest(t *testing.T) (*sql.DB, *AccountStore, *ApartmentStore, *TaskStore) {
	t.Helper()
	db := openTestDB(t)
	return db, NewAccountStore(db), NewApartmentStore(db), NewTaskStore(db)
}

func TestApartmentCreate(t *testing.T) {
	_, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	apartment, err := aps.Create("Baker Street", alice)
	if err != nil {
		t.Fatalf("create apartment: %v", err)
	}
	if apartment.AdminID != alice {
		t.Errorf("admin_id = %d, want %d", apartment.AdminID, alice)
	}

	account, _ := as.GetByID(alice)
	if account.ApartmentID == nil || *account.ApartmentID != apartment.ID {
		t.Errorf("creator membership = %v, want %d", account.ApartmentID, apartment.ID)
	}
}

func TestApartmentCreateAlreadyMember(t *testing.T) {
	_, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	if _, err := aps.Create("Baker Street", alice); err != nil {
		t.Fatalf("create apartment: %v", err)
	}

	if _, err := aps.Create("Second Place", alice); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestApartmentCreateDiscardsInvitations(t *testing.T) {
	db, as, aps, _ := setupApartmentTest(t)
	is := NewInvitationStore(db)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	other, err := aps.Create("Elsewhere", bob)
	if err != nil {
		t.Fatalf("create apartment: %v", err)
	}
	if _, err := is.Create(bob, alice, other.ID); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	if _, err := aps.Create("Baker Street", alice); err != nil {
		t.Fatalf("create apartment: %v", err)
	}

	received, err := is.ListReceivedBy(alice)
	if err != nil {
		t.Fatalf("list invitations: %v", err)
	}
	if len(received) != 0 {
		t.Errorf("invitations should be discarded, got %d", len(received))
	}
}

func TestRemoveNonMember(t *testing.T) {
	_, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)

	if _, err := aps.RemoveFromApartment(apartment.ID, bob); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRemoveFromMissingApartment(t *testing.T) {
	_, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")

	if _, err := aps.RemoveFromApartment(9999, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLeaveDeletesSingleCandidateTask(t *testing.T) {
	db, as, aps, ts := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)

	task := createTask(t, ts, alice, bob)

	result, err := aps.RemoveFromApartment(apartment.ID, bob)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(result.DeletedTaskIDs) != 1 || result.DeletedTaskIDs[0] != task.ID {
		t.Errorf("DeletedTaskIDs = %v, want [%d]", result.DeletedTaskIDs, task.ID)
	}

	got, _ := ts.GetByID(task.ID)
	if got != nil {
		t.Error("task with no surviving candidate must be deleted")
	}
}

func TestLeaveResetsSurvivingRequests(t *testing.T) {
	db, as, aps, ts := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)

	task := createTask(t, ts, alice, alice, bob)
	accept(t, ts, task.ID, alice)

	if _, err := aps.RemoveFromApartment(apartment.ID, bob); err != nil {
		t.Fatalf("remove: %v", err)
	}

	requests, _ := ts.ListRequestsByTask(task.ID)
	if len(requests) != 1 {
		t.Fatalf("expected 1 surviving request, got %d", len(requests))
	}
	if requests[0].AssigneeID != alice {
		t.Errorf("surviving assignee = %d, want %d", requests[0].AssigneeID, alice)
	}
	if requests[0].State != model.RequestPending {
		t.Errorf("surviving state = %q, want pending; the candidate set changed", requests[0].State)
	}
}

func TestLeaveCompactsAssignmentOrder(t *testing.T) {
	db, as, aps, ts := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	carol := createAccount(t, as, "carol")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)
	joinApartment(t, db, apartment.ID, carol)

	task := createTask(t, ts, alice, alice, bob, carol)
	accept(t, ts, task.ID, alice)
	accept(t, ts, task.ID, bob)
	accept(t, ts, task.ID, carol)
	if _, err := ts.ConvertIfAllAccepted(task.ID); err != nil {
		t.Fatalf("convert: %v", err)
	}

	// Bob holds the middle position; his departure must close the gap while
	// keeping alice before carol.
	if _, err := aps.RemoveFromApartment(apartment.ID, bob); err != nil {
		t.Fatalf("remove: %v", err)
	}

	assignments, _ := ts.ListAssignmentsByTask(task.ID)
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	want := []int64{alice, carol}
	for i, a := range assignments {
		if a.AssigneeID != want[i] {
			t.Errorf("position %d: assignee = %d, want %d", i, a.AssigneeID, want[i])
		}
		if a.Order != i {
			t.Errorf("position %d: order = %d, want %d", i, a.Order, i)
		}
	}
}

func TestLeaveDeletesSoloAssignedTask(t *testing.T) {
	db, as, aps, ts := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)

	task := createTask(t, ts, alice, bob)
	accept(t, ts, task.ID, bob)
	if _, err := ts.ConvertIfAllAccepted(task.ID); err != nil {
		t.Fatalf("convert: %v", err)
	}

	result, err := aps.RemoveFromApartment(apartment.ID, bob)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(result.DeletedTaskIDs) != 1 {
		t.Fatalf("DeletedTaskIDs = %v, want one entry", result.DeletedTaskIDs)
	}

	got, _ := ts.GetByID(task.ID)
	if got != nil {
		t.Error("task assigned only to the leaver must be deleted")
	}
}

func TestLastLeaverDeletesApartment(t *testing.T) {
	_, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	apartment, _ := aps.Create("Baker Street", alice)

	result, err := aps.RemoveFromApartment(apartment.ID, alice)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !result.ApartmentDeleted {
		t.Error("emptied apartment must be deleted")
	}
	if len(result.RemainingIDs) != 0 {
		t.Errorf("RemainingIDs = %v, want empty", result.RemainingIDs)
	}

	got, _ := aps.GetByID(apartment.ID)
	if got != nil {
		t.Error("expected nil after apartment deletion")
	}
	account, _ := as.GetByID(alice)
	if account.ApartmentID != nil {
		t.Error("leaver's membership must be cleared")
	}
}

func TestAdminSuccessionLowestID(t *testing.T) {
	db, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	carol := createAccount(t, as, "carol")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)
	joinApartment(t, db, apartment.ID, carol)

	result, err := aps.RemoveFromApartment(apartment.ID, alice)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if result.ApartmentDeleted {
		t.Fatal("apartment still has members")
	}
	if result.NewAdminID == nil || *result.NewAdminID != bob {
		t.Fatalf("NewAdminID = %v, want %d", result.NewAdminID, bob)
	}

	updated, _ := aps.GetByID(apartment.ID)
	if updated.AdminID != bob {
		t.Errorf("admin_id = %d, want %d", updated.AdminID, bob)
	}
}

func TestNonAdminLeaveKeepsAdmin(t *testing.T) {
	db, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)

	result, err := aps.RemoveFromApartment(apartment.ID, bob)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if result.NewAdminID != nil {
		t.Errorf("NewAdminID = %v, want nil", result.NewAdminID)
	}

	updated, _ := aps.GetByID(apartment.ID)
	if updated.AdminID != alice {
		t.Errorf("admin_id = %d, want %d", updated.AdminID, alice)
	}
}

func TestLeaveUntouchedTasksSurvive(t *testing.T) {
	db, as, aps, ts := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	carol := createAccount(t, as, "carol")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)
	joinApartment(t, db, apartment.ID, carol)

	// Carol is not involved in this task at all.
	task := createTask(t, ts, alice, alice, bob)
	accept(t, ts, task.ID, alice)

	if _, err := aps.RemoveFromApartment(apartment.ID, carol); err != nil {
		t.Fatalf("remove: %v", err)
	}

	requests, _ := ts.ListRequestsByTask(task.ID)
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	for _, r := range requests {
		if r.AssigneeID == alice && r.State != model.RequestAccepted {
			t.Error("uninvolved departure must not reset request states")
		}
	}
}

func TestApartmentDelete(t *testing.T) {
	db, as, aps, ts := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)

	task := createTask(t, ts, alice, alice, bob)

	if err := aps.Delete(apartment.ID); err != nil {
		t.Fatalf("delete apartment: %v", err)
	}

	got, _ := aps.GetByID(apartment.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
	gotTask, _ := ts.GetByID(task.ID)
	if gotTask != nil {
		t.Error("member tasks must be removed with the apartment")
	}
	for _, id := range []int64{alice, bob} {
		account, _ := as.GetByID(id)
		if account.ApartmentID != nil {
			t.Errorf("account %d membership should be cleared", id)
		}
	}
}

func TestGetViewMembers(t *testing.T) {
	db, as, aps, _ := setupApartmentTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)
	joinApartment(t, db, apartment.ID, bob)

	view, err := aps.GetView(apartment.ID)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if len(view.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(view.Members))
	}
	if view.Members[0].Username != "alice" || view.Members[1].Username != "bob" {
		t.Errorf("members = %v, want alice then bob", view.Members)
	}
}
