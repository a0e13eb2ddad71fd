package identity

import (
	"testing"
)

func TestAuthenticated(t *testing.T) {
	var nilCtx Context
	if nilCtx.Authenticated() {
		t.Error("nil context reports authenticated")
	}
	if nilCtx.UserID() != "" {
		t.Errorf("UserID = %q", nilCtx.UserID())
	}
	ic := Context{FieldUserID: "user-1", "tenant": "main"}
	if !ic.Authenticated() || ic.UserID() != "user-1" {
		t.Errorf("context = %v", ic)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ic := Context{FieldUserID: "user-1"}
	ctx := With(t.Context(), ic)
	got := FromContext(ctx)
	if got.UserID() != "user-1" {
		t.Errorf("got = %v", got)
	}
	// Extra fields travel along untouched.
	ic["custom"] = "x"
	if FromContext(ctx)["custom"] != "x" {
		t.Error("extra field lost")
	}
	if FromContext(t.Context()) != nil {
		t.Error("empty context is not anonymous")
	}
}
