package store

import "testing"

func TestAccountCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	as := NewAccountStore(db)

	created, err := as.Create("alice", "Alice", "hash")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if created.Username != "alice" {
		t.Errorf("username = %q, want %q", created.Username, "alice")
	}
	if created.ApartmentID != nil {
		t.Error("new account must have no apartment")
	}

	got, err := as.GetByUsername("alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Errorf("got = %v, want id %d", got, created.ID)
	}
}

func TestAccountGetMissing(t *testing.T) {
	db := openTestDB(t)
	as := NewAccountStore(db)

	got, err := as.GetByUsername("nobody")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown username")
	}
}

func TestAccountUsernameUnique(t *testing.T) {
	db := openTestDB(t)
	as := NewAccountStore(db)

	createAccount(t, as, "alice")
	if _, err := as.Create("alice", "Other Alice", "hash"); err == nil {
		t.Error("expected error for duplicate username")
	}
}

func TestAccountUpdate(t *testing.T) {
	db := openTestDB(t)
	as := NewAccountStore(db)

	id := createAccount(t, as, "alice")
	updated, err := as.Update(id, "Alice B.")
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.Name != "Alice B." {
		t.Errorf("name = %q, want %q", updated.Name, "Alice B.")
	}
}

func TestListByApartmentOrder(t *testing.T) {
	db := openTestDB(t)
	as := NewAccountStore(db)
	aps := NewApartmentStore(db)

	alice := createAccount(t, as, "alice")
	bob := createAccount(t, as, "bob")
	apartment, err := aps.Create("Baker Street", alice)
	if err != nil {
		t.Fatalf("create apartment: %v", err)
	}
	joinApartment(t, db, apartment.ID, bob)

	members, err := as.ListByApartment(apartment.ID)
	if err != nil {
		t.Fatalf("list by apartment: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].ID != alice || members[1].ID != bob {
		t.Error("members must come back in ascending id order")
	}
}
