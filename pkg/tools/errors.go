package tools

// ToolError marks a tool failure as recoverable: dispatch converts it into
// an error payload for the model instead of failing the request.
type ToolError struct {
	Err error
}

func (e *ToolError) Error() string {
	return e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
