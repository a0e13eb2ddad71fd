package chat

import (
	"context"
	"iter"

	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/tools"
)

// Transport sends one conversation state to a model backend and streams the
// response back as fragments. The sequence ends after a fragment carrying a
// finish reason, or after a yielded error for transport-level failures.
type Transport interface {
	Stream(ctx context.Context, msgs []parts.Message) iter.Seq2[*parts.Fragment, error]
}

// TransportFactory builds a transport bound to a tool set. Implemented per
// backend (OpenAI-compatible, Gemini). The system prompt travels as the
// first message of every conversation, not as transport state.
type TransportFactory interface {
	Name() string
	NewTransport(ctx context.Context, toolDefs []tools.ToolDefinition) (Transport, error)
}
