// package chat implements the tool-call orchestration loop: it drives
// repeated transport calls, streams text out as it arrives, assembles
// tool-call requests from fragments, dispatches them, and feeds the results
// back until the model produces a final answer.
package chat

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"

	"github.com/amitbl/pharmachat/pkg/chat/accum"
	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/identity"
	"github.com/amitbl/pharmachat/pkg/session"
	"github.com/amitbl/pharmachat/pkg/tools"
)

const defaultMaxIterations = 10

// Request is one user turn handed to the orchestrator. History carries the
// prior conversation of the same UI session; the loop itself keeps no state
// across requests.
type Request struct {
	Message          string
	History          []parts.Message
	Identity         identity.Context
	IncludeToolCalls bool

	// Recorder, when set, collects the iteration trace of this request.
	Recorder *Recorder
}

// Orchestrator runs the loop for one backend. It is constructed once at
// startup and injected wherever requests are served; it holds no per-request
// state and is safe for concurrent requests.
type Orchestrator struct {
	transport     Transport
	runner        *tools.Runner
	maxIterations int
}

type Option func(*Orchestrator)

func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

func NewOrchestrator(transport Transport, runner *tools.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport:     transport,
		runner:        runner,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func validate(req *Request) error {
	if strings.TrimSpace(req.Message) == "" {
		return errEmptyMessage
	}
	for i, m := range req.History {
		switch m.Role {
		case parts.RoleUser, parts.RoleAssistant, parts.RoleTool:
		default:
			return fmt.Errorf("history entry %d has unsupported role %q", i, m.Role)
		}
	}
	return nil
}

var errEmptyMessage = fmt.Errorf("empty message")

// StreamResponse produces the interleaved output sequence for one request.
// The sequence is single-use and pull-driven: each pull advances the loop by
// one transport read or one tool dispatch. Recoverable problems (tool
// failures, argument parse failures) are folded into the conversation;
// only transport failures are yielded as errors, always after a user-safe
// text unit.
func (o *Orchestrator) StreamResponse(ctx context.Context, req Request) iter.Seq2[*Unit, error] {
	return func(yield func(*Unit, error) bool) {
		logger, err := session.LoggerFromContext(ctx, "chat")
		if err != nil {
			yield(textUnit(transportErrorResponse), nil)
			yield(nil, err)
			return
		}

		if err := validate(&req); err != nil {
			// No loop iteration is consumed; the canned help text is the
			// whole response.
			logger.Info("request rejected", "error", err)
			yield(textUnit(emptyMessageResponse), nil)
			return
		}

		ctx = identity.With(ctx, req.Identity)

		msgs := make([]parts.Message, 0, len(req.History)+2)
		msgs = append(msgs, parts.SystemMessage(SystemPrompt()))
		msgs = append(msgs, req.History...)
		msgs = append(msgs, parts.UserMessage(req.Message))

		state := StateAwaitingModel
		defer func() {
			req.Recorder.setFinal(state)
		}()

		for iteration := 0; iteration < o.maxIterations; iteration++ {
			state = StateAwaitingModel
			acc := accum.New()
			rec := IterationRecord{
				Index:    iteration,
				Messages: msgs,
			}

			for frag, err := range o.transport.Stream(ctx, msgs) {
				if err != nil {
					// Transport failures are fatal to the request.
					state = StateFailed
					req.Recorder.addIteration(rec)
					logger.Error("transport failed", "iteration", iteration, "error", err)
					if yield(textUnit(transportErrorResponse), nil) {
						yield(nil, err)
					}
					return
				}
				acc.Add(frag)
				if frag.Text != "" {
					state = StateStreamingText
					// Text deltas are forwarded immediately, unbuffered.
					if !yield(textUnit(frag.Text), nil) {
						return
					}
				}
				if frag.Thought != "" {
					if !yield(&Unit{Thought: frag.Thought}, nil) {
						return
					}
				}
				if frag.ToolCall != nil {
					state = StateAccumulatingToolCall
				}
			}

			rec.Text = acc.Text()
			rec.Thought = acc.Thought()
			rec.FinishReason = acc.FinishReason()

			if !acc.HasCalls() {
				state = StateDone
				req.Recorder.addIteration(rec)
				return
			}

			state = StateExecutingTools
			assistant := parts.Message{
				Role:    parts.RoleAssistant,
				Content: acc.Text(),
			}
			var toolMsgs []parts.Message

			for _, call := range acc.Calls() {
				id := call.ID
				if id == "" {
					// Some backends omit call ids; tool messages still
					// need a back-reference.
					id = uuid.NewString()
				}

				args, parseErr := call.ParseArgs()
				if args == nil {
					args = map[string]any{}
				}
				assistant.ToolCalls = append(assistant.ToolCalls, parts.ToolCall{
					ID:   id,
					Name: call.Name,
					Args: args,
				})

				// The start unit goes out before the dispatch runs, the
				// result unit right after it completes. With tool-call
				// units disabled the dispatch still happens; only the
				// telemetry is suppressed.
				if req.IncludeToolCalls {
					started := &Unit{ToolCallStart: &ToolCallEvent{
						ToolName:  call.Name,
						ToolID:    id,
						Arguments: args,
					}}
					if !yield(started, nil) {
						return
					}
				}

				var exec tools.Execution
				if parseErr != nil {
					// A malformed argument buffer fails this call only;
					// the rest of the turn proceeds.
					exec = tools.Execution{
						Tool: call.Name,
						Args: args,
						Err:  parseErr.Error(),
					}
				} else {
					exec = o.runner.Dispatch(ctx, call.Name, args)
				}
				rec.Executions = append(rec.Executions, exec)

				if req.IncludeToolCalls {
					result := &Unit{ToolCallResult: &ToolCallEvent{
						ToolName: call.Name,
						ToolID:   id,
						Result:   exec.Result,
						Success:  exec.Success,
						Error:    exec.Err,
					}}
					if !yield(result, nil) {
						return
					}
				}

				toolMsg, err := parts.ToolMessage(id, exec.Result, exec.ResultErr())
				if err != nil {
					// An unencodable result degrades to an error payload
					// for the model rather than failing the request.
					toolMsg, _ = parts.ToolMessage(id, nil, err)
				}
				toolMsgs = append(toolMsgs, toolMsg)
			}

			rec.ToolCalls = assistant.ToolCalls
			req.Recorder.addIteration(rec)

			msgs = append(msgs, assistant)
			msgs = append(msgs, toolMsgs...)
		}

		// Iteration cap: a designed termination path, not an error. The
		// text streamed so far is the response.
		logger.Warn("iteration cap reached", "cap", o.maxIterations)
		state = StateDone
	}
}
