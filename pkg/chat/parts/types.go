package parts

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a fully assembled function invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one entry of the conversation sent to a transport.
//
// Content may be empty on an assistant message that only carries tool
// calls. A tool message references the assistant's request through
// ToolCallID and carries the stringified tool result in Content.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolMessage encodes a tool result as the conversation entry confirming
// the call identified by callID. The payload always carries a success flag
// so the model can react to failed executions.
func ToolMessage(callID string, payload any, execErr error) (Message, error) {
	body := map[string]any{
		"success": execErr == nil,
	}
	if execErr != nil {
		body["error_message"] = execErr.Error()
	} else if payload != nil {
		body["data"] = payload
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode tool result for %s: %w", callID, err)
	}
	return Message{
		Role:       RoleTool,
		Content:    string(encoded),
		ToolCallID: callID,
	}, nil
}

// FinishReason is the terminal signal of one model turn.
type FinishReason string

const (
	FinishNone      FinishReason = ""
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
)

// ToolCallDelta is one streamed piece of a tool-call request. The first
// delta for an index may carry only the id and name; later deltas may carry
// argument text only. Merging happens by Index, not by ID.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	ArgsDelta string `json:"args_delta,omitempty"`
}

// Fragment is the unit received from a transport while streaming. A single
// fragment may carry a text delta, a thought delta, a tool-call delta,
// and/or a finish reason; unset fields are zero.
type Fragment struct {
	Text         string         `json:"text,omitempty"`
	Thought      string         `json:"thought,omitempty"`
	ToolCall     *ToolCallDelta `json:"tool_call,omitempty"`
	FinishReason FinishReason   `json:"finish_reason,omitempty"`
}
