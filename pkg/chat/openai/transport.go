// package openai implements the model transport over an OpenAI-compatible
// chat-completion API with streaming.
package openai

import (
	"context"
	"iter"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/session"
)

// Transport streams chat completions from one configured backend.
type Transport struct {
	client    openai.ChatCompletionService
	modelName string
	tools     []openai.ChatCompletionToolUnionParam
}

func toMessageParam(m parts.Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case parts.RoleSystem:
		return openai.SystemMessage(m.Content)
	case parts.RoleAssistant:
		if len(m.ToolCalls) == 0 {
			return openai.AssistantMessage(m.Content)
		}
		assistant := &openai.ChatCompletionAssistantMessageParam{}
		if m.Content != "" {
			assistant.Content.OfString = param.NewOpt(m.Content)
		}
		for _, tc := range m.ToolCalls {
			// The arguments travel back as the canonical encoding of the
			// parsed map; the raw streamed text is not retained.
			args := "{}"
			if encoded, err := marshalArgs(tc.Args); err == nil {
				args = encoded
			}
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: args,
					},
					Type: "function",
				},
			})
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: assistant}
	case parts.RoleTool:
		return openai.ToolMessage(m.Content, m.ToolCallID)
	default:
		return openai.UserMessage(m.Content)
	}
}

func toFinishReason(reason string) parts.FinishReason {
	switch reason {
	case "tool_calls", "function_call":
		return parts.FinishToolCalls
	case "length":
		return parts.FinishLength
	case "":
		return parts.FinishNone
	default:
		return parts.FinishStop
	}
}

// Stream implements chat.Transport. The returned sequence closes the
// underlying SSE stream when the consumer stops pulling.
func (t *Transport) Stream(ctx context.Context, msgs []parts.Message) iter.Seq2[*parts.Fragment, error] {
	return func(yield func(*parts.Fragment, error) bool) {
		logger, err := session.LoggerFromContext(ctx, "openai")
		if err != nil {
			logger = slog.New(slog.DiscardHandler)
		}

		messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
		for _, m := range msgs {
			messages = append(messages, toMessageParam(m))
		}
		logger.Debug("sending", "messages", len(messages), "model", t.modelName)

		st := t.client.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Messages: messages,
			Model:    t.modelName,
			Tools:    t.tools,
		})
		defer st.Close()

		for st.Next() {
			ev := st.Current()
			logger.Debug("received chunk", "chunk", ev)
			if len(ev.Choices) == 0 {
				continue
			}
			choice := ev.Choices[0]
			frag := &parts.Fragment{
				Text:         choice.Delta.Content,
				FinishReason: toFinishReason(choice.FinishReason),
			}
			if len(choice.Delta.ToolCalls) == 0 {
				if frag.Text != "" || frag.FinishReason != parts.FinishNone {
					if !yield(frag, nil) {
						return
					}
				}
				continue
			}
			// A chunk may carry several tool-call deltas; each one becomes
			// its own fragment so the accumulator merges strictly by index.
			for i, tc := range choice.Delta.ToolCalls {
				f := &parts.Fragment{
					ToolCall: &parts.ToolCallDelta{
						Index:     int(tc.Index),
						ID:        tc.ID,
						Name:      tc.Function.Name,
						ArgsDelta: tc.Function.Arguments,
					},
				}
				if i == 0 {
					f.Text = frag.Text
				}
				if i == len(choice.Delta.ToolCalls)-1 {
					f.FinishReason = frag.FinishReason
				}
				if !yield(f, nil) {
					return
				}
			}
		}
		if st.Err() != nil {
			yield(nil, st.Err())
		}
	}
}
