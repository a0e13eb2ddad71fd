// package gemini implements the model transport over the Gemini API. The
// API streams whole function-call parts rather than argument deltas, so
// each call surfaces as a single fragment carrying the full argument text.
package gemini

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"

	"google.golang.org/genai"

	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/session"
)

type Transport struct {
	client    *genai.Client
	modelName string
	funcs     []*genai.FunctionDeclaration
}

// callName resolves the tool name for a tool message by scanning the
// preceding assistant tool calls; the Gemini function response requires it.
func callName(msgs []parts.Message, callID string) string {
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			if tc.ID == callID {
				return tc.Name
			}
		}
	}
	return ""
}

func toContents(msgs []parts.Message) (systemText string, contents []*genai.Content) {
	for _, m := range msgs {
		switch m.Role {
		case parts.RoleSystem:
			systemText = m.Content
		case parts.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case parts.RoleAssistant:
			var ps []*genai.Part
			if m.Content != "" {
				ps = append(ps, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				ps = append(ps, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Args,
					},
				})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: ps})
		case parts.RoleTool:
			resp := map[string]any{}
			if err := json.Unmarshal([]byte(m.Content), &resp); err != nil {
				resp = map[string]any{"content": m.Content}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolCallID,
						Name:     callName(msgs, m.ToolCallID),
						Response: resp,
					},
				}},
			})
		}
	}
	return systemText, contents
}

// Stream implements chat.Transport.
func (t *Transport) Stream(ctx context.Context, msgs []parts.Message) iter.Seq2[*parts.Fragment, error] {
	return func(yield func(*parts.Fragment, error) bool) {
		logger, err := session.LoggerFromContext(ctx, "gemini")
		if err != nil {
			logger = slog.New(slog.DiscardHandler)
		}

		systemText, contents := toContents(msgs)
		config := &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{FunctionDeclarations: t.funcs}},
		}
		if systemText != "" {
			config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
		}

		callIndex := 0
		sawCall := false
		for resp, err := range t.client.Models.GenerateContentStream(ctx, t.modelName, contents, config) {
			if err != nil {
				yield(nil, err)
				return
			}
			logger.Debug("received response", "response", resp)
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.FunctionCall != nil {
					args := "{}"
					if encoded, err := json.Marshal(part.FunctionCall.Args); err == nil {
						args = string(encoded)
					}
					sawCall = true
					frag := &parts.Fragment{
						ToolCall: &parts.ToolCallDelta{
							Index:     callIndex,
							ID:        part.FunctionCall.ID,
							Name:      part.FunctionCall.Name,
							ArgsDelta: args,
						},
					}
					callIndex++
					if !yield(frag, nil) {
						return
					}
					continue
				}
				if part.Text != "" {
					frag := &parts.Fragment{}
					if part.Thought {
						frag.Thought = part.Text
					} else {
						frag.Text = part.Text
					}
					if !yield(frag, nil) {
						return
					}
				}
			}
		}

		finish := parts.FinishStop
		if sawCall {
			finish = parts.FinishToolCalls
		}
		yield(&parts.Fragment{FinishReason: finish}, nil)
	}
}
