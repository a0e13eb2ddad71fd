package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/amitbl/pharmachat/pkg/identity"
)

type echoRequest struct {
	Value string `json:"value"`
}

type echoResponse struct {
	Echo string `json:"echo"`
}

func echoDef() ToolDefinition {
	return NewDefinition("echo", "echoes the value back", false,
		func(ctx context.Context, req echoRequest) (echoResponse, error) {
			return echoResponse{Echo: req.Value}, nil
		})
}

func TestNewRunnerRejectsDuplicates(t *testing.T) {
	if _, err := NewRunner([]ToolDefinition{echoDef(), echoDef()}); err == nil {
		t.Fatal("expected duplicate-name error")
	}
}

func TestDispatchSuccess(t *testing.T) {
	r, err := NewRunner([]ToolDefinition{echoDef()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	exec := r.Dispatch(t.Context(), "echo", map[string]any{"value": "hi"})
	if !exec.Success {
		t.Fatalf("dispatch failed: %s", exec.Err)
	}
	if exec.Result["echo"] != "hi" {
		t.Errorf("result = %v", exec.Result)
	}
	if exec.ResultErr() != nil {
		t.Errorf("ResultErr = %v on success", exec.ResultErr())
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r, _ := NewRunner(nil)
	exec := r.Dispatch(t.Context(), "no_such_tool", nil)
	if exec.Success {
		t.Fatal("unknown tool dispatched successfully")
	}
	if exec.Err == "" {
		t.Error("no error text for unknown tool")
	}
}

func TestDispatchRequiresAuth(t *testing.T) {
	def := NewDefinition("private", "needs a signed-in user", true,
		func(ctx context.Context, req struct{}) (echoResponse, error) {
			return echoResponse{Echo: identity.FromContext(ctx).UserID()}, nil
		})
	r, _ := NewRunner([]ToolDefinition{def})

	exec := r.Dispatch(t.Context(), "private", nil)
	if exec.Success {
		t.Fatal("anonymous dispatch succeeded on an auth-required tool")
	}

	ctx := identity.With(t.Context(), identity.Context{identity.FieldUserID: "user-1"})
	exec = r.Dispatch(ctx, "private", nil)
	if !exec.Success {
		t.Fatalf("authenticated dispatch failed: %s", exec.Err)
	}
	if exec.Result["echo"] != "user-1" {
		t.Errorf("result = %v", exec.Result)
	}
}

func TestDispatchUnwrapsToolError(t *testing.T) {
	def := NewDefinition("strict", "rejects everything", false,
		func(ctx context.Context, req struct{}) (struct{}, error) {
			return struct{}{}, &ToolError{errors.New("value is required")}
		})
	r, _ := NewRunner([]ToolDefinition{def})
	exec := r.Dispatch(t.Context(), "strict", nil)
	if exec.Success {
		t.Fatal("expected failure")
	}
	if exec.Err != "value is required" {
		t.Errorf("error text = %q, want the unwrapped message", exec.Err)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	def := NewDefinition("bomb", "panics", false,
		func(ctx context.Context, req struct{}) (struct{}, error) {
			panic("boom")
		})
	r, _ := NewRunner([]ToolDefinition{def})
	exec := r.Dispatch(t.Context(), "bomb", nil)
	if exec.Success {
		t.Fatal("panicking tool reported success")
	}
	if exec.Err == "" {
		t.Error("no error text after panic recovery")
	}
}

func TestDispatchBadArgumentTypes(t *testing.T) {
	r, _ := NewRunner([]ToolDefinition{echoDef()})
	// A value of the wrong type fails the typed unmarshal but must come
	// back as a failed execution, not an error escaping Dispatch.
	exec := r.Dispatch(t.Context(), "echo", map[string]any{"value": 42})
	if exec.Success {
		t.Fatal("expected unmarshal failure")
	}
}

func TestDefinitionSchemas(t *testing.T) {
	d := echoDef()
	req := d.RequestSchema()
	if req == nil || req.Properties == nil {
		t.Fatal("request schema missing")
	}
	if _, ok := req.Properties.Get("value"); !ok {
		t.Error("request schema lacks the value property")
	}
	resp := d.ResponseSchema()
	if _, ok := resp.Properties.Get("echo"); !ok {
		t.Error("response schema lacks the echo property")
	}
}
