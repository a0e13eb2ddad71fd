// package identity carries the caller-supplied identity context through a
// request. The orchestration loop and the transports never inspect it; only
// tool dispatch reads the fields it requires.
package identity

import "context"

// Well-known field names. The set is open; callers may attach extra fields
// and they travel along untouched.
const (
	FieldUserID       = "authenticated_user_id"
	FieldUsername     = "authenticated_username"
	FieldPasswordHash = "authenticated_password_hash"
)

// Context is an opaque bag of caller identity fields.
type Context map[string]string

// UserID returns the authenticated user id, or "" when the caller is
// anonymous.
func (c Context) UserID() string {
	if c == nil {
		return ""
	}
	return c[FieldUserID]
}

func (c Context) Authenticated() bool {
	return c.UserID() != ""
}

type ctxKey struct{}

// With attaches the identity context to ctx.
func With(ctx context.Context, ic Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ic)
}

// FromContext extracts the identity context attached by With. It returns a
// nil Context when none was attached, which behaves as anonymous.
func FromContext(ctx context.Context) Context {
	ic, _ := ctx.Value(ctxKey{}).(Context)
	return ic
}
