package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	apartmentID := int64(2)
	ac := AuthContext{
		AccountID:   1,
		Username:    "alice",
		ApartmentID: &apartmentID,
		SessionID:   3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.AccountID != 1 {
		t.Errorf("AccountID = %d, want 1", got.AccountID)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
	if got.ApartmentID == nil || *got.ApartmentID != 2 {
		t.Errorf("ApartmentID = %v, want 2", got.ApartmentID)
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAccountID(t *testing.T) {
	ac := AuthContext{AccountID: 7}
	ctx := WithAuth(context.Background(), ac)
	if AccountID(ctx) != 7 {
		t.Errorf("AccountID = %d, want 7", AccountID(ctx))
	}
}

func TestAccountIDMissing(t *testing.T) {
	if AccountID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestApartmentID(t *testing.T) {
	apartmentID := int64(42)
	ctx := WithAuth(context.Background(), AuthContext{ApartmentID: &apartmentID})
	if ApartmentID(ctx) != 42 {
		t.Errorf("ApartmentID = %d, want 42", ApartmentID(ctx))
	}
}

func TestApartmentIDNone(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{AccountID: 1})
	if ApartmentID(ctx) != 0 {
		t.Error("expected 0 for account without apartment")
	}
}

func TestApartmentIDMissing(t *testing.T) {
	if ApartmentID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}
