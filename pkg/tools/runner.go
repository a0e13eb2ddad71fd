package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amitbl/pharmachat/pkg/identity"
)

// Execution records one tool dispatch: what ran, with which arguments, and
// what came back. Err is a user-presentable description; internal errors
// never leak verbatim into the conversation beyond it.
type Execution struct {
	Tool     string         `json:"tool"`
	Args     map[string]any `json:"args"`
	Result   map[string]any `json:"result,omitempty"`
	Err      string         `json:"error,omitempty"`
	Success  bool           `json:"success"`
	Duration time.Duration  `json:"duration"`
}

func (e *Execution) ResultErr() error {
	if e.Success {
		return nil
	}
	return errors.New(e.Err)
}

// Runner dispatches assembled tool calls to their definitions.
type Runner struct {
	defsMap map[string]ToolDefinition
}

func NewRunner(defs []ToolDefinition) (*Runner, error) {
	m := make(map[string]ToolDefinition, len(defs))
	for _, d := range defs {
		if _, ok := m[d.Name()]; ok {
			return nil, fmt.Errorf("duplicated tool name %s", d.Name())
		}
		m[d.Name()] = d
	}
	return &Runner{defsMap: m}, nil
}

func (r *Runner) Defs() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.defsMap))
	for _, d := range r.defsMap {
		defs = append(defs, d)
	}
	return defs
}

// Dispatch runs one tool call and never fails outward: unknown tools,
// missing authentication, handler errors and panics all come back as an
// Execution with Success=false. The authorization check lives here so every
// tool gets it uniformly.
func (r *Runner) Dispatch(ctx context.Context, name string, args map[string]any) Execution {
	logger := getLogger(ctx)
	start := time.Now()
	exec := Execution{
		Tool: name,
		Args: args,
	}
	finish := func() Execution {
		exec.Duration = time.Since(start)
		logger.Info("tool dispatched",
			"tool", exec.Tool, "success", exec.Success, "duration", exec.Duration)
		return exec
	}

	d, ok := r.defsMap[name]
	if !ok {
		exec.Err = fmt.Sprintf("unknown tool %s", name)
		return finish()
	}
	if d.RequiresAuth() && !identity.FromContext(ctx).Authenticated() {
		exec.Err = fmt.Sprintf("tool %s requires an authenticated user", name)
		return finish()
	}

	result, err := func() (result map[string]any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("tool %s panicked: %v", name, p)
			}
		}()
		return d.process(ctx, args)
	}()
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			err = toolErr.Unwrap()
		}
		logger.Error("tool failed", "tool", name, "error", err)
		exec.Err = err.Error()
		return finish()
	}
	exec.Result = result
	exec.Success = true
	return finish()
}
