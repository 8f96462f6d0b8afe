package auth

import "context"

type contextKey struct{}

// AuthContext carries the authenticated account through a request's call
// chain. ApartmentID is nil for accounts that have not joined an apartment.
type AuthContext struct {
	AccountID   int64
	Username    string
	ApartmentID *int64
	SessionID   int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func AccountID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.AccountID
}

// ApartmentID returns the account's apartment id, or 0 when the account has
// none.
func ApartmentID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok || ac.ApartmentID == nil {
		return 0
	}
	return *ac.ApartmentID
}
