package store

import (
	"database/sql"
	"errors"
	"testing"
)

func setupInvitationTest(t *testing.T) (*sql.DB, *AccountStore, *ApartmentStore, *InvitationStore) {
	t.Helper()
	db := openTestDB(t)
	return db, NewAccountStore(db), NewApartmentStore(db), NewInvitationStore(db)
}

func TestInvitationCreateAndView(t *testing.T) {
	_, as, aps, is := setupInvitationTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)

	inv, err := is.Create(alice, bob, apartment.ID)
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	view, err := is.GetView(inv.ID)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.Invitor.Username != "alice" {
		t.Errorf("invitor = %q, want alice", view.Invitor.Username)
	}
	if view.Invitee.Username != "bob" {
		t.Errorf("invitee = %q, want bob", view.Invitee.Username)
	}
	if view.Apartment.ID != apartment.ID {
		t.Errorf("apartment = %d, want %d", view.Apartment.ID, apartment.ID)
	}
}

func TestInvitationDuplicate(t *testing.T) {
	_, as, aps, is := setupInvitationTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)

	if _, err := is.Create(alice, bob, apartment.ID); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := is.Create(alice, bob, apartment.ID); err == nil {
		t.Error("expected error for duplicate invitation")
	}
}

func TestInvitationAccept(t *testing.T) {
	_, as, aps, is := setupInvitationTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	carol := createAccount(t, as, "carol")
	apartment, _ := aps.Create("Baker Street", alice)
	other, _ := aps.Create("Elsewhere", carol)

	inv, _ := is.Create(alice, bob, apartment.ID)
	competing, _ := is.Create(carol, bob, other.ID)

	withdrawn, err := is.Accept(inv.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	account, _ := as.GetByID(bob)
	if account.ApartmentID == nil || *account.ApartmentID != apartment.ID {
		t.Errorf("membership = %v, want %d", account.ApartmentID, apartment.ID)
	}

	if len(withdrawn) != 1 || withdrawn[0].ID != competing.ID {
		t.Fatalf("withdrawn = %v, want the competing invitation", withdrawn)
	}

	received, _ := is.ListReceivedBy(bob)
	if len(received) != 0 {
		t.Errorf("all of bob's invitations should be consumed, got %d", len(received))
	}
}

func TestInvitationAcceptMissing(t *testing.T) {
	_, _, _, is := setupInvitationTest(t)

	if _, err := is.Accept(9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvitationListSentAndReceived(t *testing.T) {
	_, as, aps, is := setupInvitationTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	carol := createAccount(t, as, "carol")
	apartment, _ := aps.Create("Baker Street", alice)

	is.Create(alice, bob, apartment.ID)
	is.Create(alice, carol, apartment.ID)

	sent, err := is.ListSentBy(alice)
	if err != nil {
		t.Fatalf("list sent: %v", err)
	}
	if len(sent) != 2 {
		t.Errorf("sent = %d, want 2", len(sent))
	}

	received, err := is.ListReceivedBy(bob)
	if err != nil {
		t.Fatalf("list received: %v", err)
	}
	if len(received) != 1 {
		t.Errorf("received = %d, want 1", len(received))
	}
}

func TestInvitationDelete(t *testing.T) {
	_, as, aps, is := setupInvitationTest(t)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, _ := aps.Create("Baker Street", alice)
	inv, _ := is.Create(alice, bob, apartment.ID)

	if err := is.Delete(inv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := is.GetByID(inv.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
