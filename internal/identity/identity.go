// Package identity carries the acting case manager through a request
// context, so no component keeps session state of its own.
package identity

import "context"

// RolePatient is the role of tokens issued at patient login. Such callers
// may only reach their own records.
const RolePatient = "patient"

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (u User) IsPatient() bool {
	return u.Role == RolePatient
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok && u.ID != ""
}

// Actor names whoever is acting in ctx, or fallback when nobody is.
func Actor(ctx context.Context, fallback string) string {
	if u, ok := FromContext(ctx); ok {
		return u.ID
	}
	return fallback
}
