package chat

// ToolCallEvent is the structured payload attached to a tool-call start or
// result unit.
type ToolCallEvent struct {
	ToolName  string         `json:"tool_name"`
	ToolID    string         `json:"tool_id"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// Unit is one element of the orchestrator's output sequence. Exactly one
// field is set. Thought text is a distinct channel from display text;
// presentation layers may drop it.
type Unit struct {
	Text           string         `json:"text,omitempty"`
	Thought        string         `json:"thought,omitempty"`
	ToolCallStart  *ToolCallEvent `json:"tool_call_start,omitempty"`
	ToolCallResult *ToolCallEvent `json:"tool_call_result,omitempty"`
}

func textUnit(text string) *Unit {
	return &Unit{Text: text}
}
