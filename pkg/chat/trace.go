package chat

import (
	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/tools"
)

// State names the orchestrator's position in its request lifecycle.
type State string

const (
	StateAwaitingModel        State = "awaiting_model"
	StateStreamingText        State = "streaming_text"
	StateAccumulatingToolCall State = "accumulating_tool_calls"
	StateExecutingTools       State = "executing_tools"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// IterationRecord captures one model-call round: the outgoing messages, the
// fully accumulated response, and the tool executions it triggered.
type IterationRecord struct {
	Index        int                `json:"index"`
	Messages     []parts.Message    `json:"messages"`
	Text         string             `json:"text,omitempty"`
	Thought      string             `json:"thought,omitempty"`
	ToolCalls    []parts.ToolCall   `json:"tool_calls,omitempty"`
	FinishReason parts.FinishReason `json:"finish_reason,omitempty"`
	Executions   []tools.Execution  `json:"executions,omitempty"`
}

// Recorder collects the trace of one request as a byproduct of driving the
// loop. It is optional; a nil Recorder records nothing.
type Recorder struct {
	Iterations []IterationRecord `json:"iterations"`
	Final      State             `json:"final_state"`
}

func (r *Recorder) addIteration(rec IterationRecord) {
	if r == nil {
		return
	}
	r.Iterations = append(r.Iterations, rec)
}

func (r *Recorder) setFinal(s State) {
	if r == nil {
		return
	}
	r.Final = s
}
