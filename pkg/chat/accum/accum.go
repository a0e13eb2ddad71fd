// package accum assembles the streamed fragments of one model turn into a
// complete assistant response: the concatenated text, the fully accumulated
// tool-call requests, and the finish reason.
package accum

import (
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/amitbl/pharmachat/pkg/chat/parts"
)

// PendingCall is one tool call as accumulated so far. Args must not be
// parsed before the turn's finish reason arrives; until then the buffer may
// end mid-token.
type PendingCall struct {
	ID   string
	Name string
	args strings.Builder
}

// ArgsText returns the raw accumulated argument text.
func (p *PendingCall) ArgsText() string {
	return p.args.String()
}

// ParseArgs parses the accumulated argument text. An empty buffer parses as
// an empty argument map, which models commonly emit for no-argument tools.
func (p *PendingCall) ParseArgs() (map[string]any, error) {
	raw := strings.TrimSpace(p.args.String())
	if raw == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("malformed arguments for %s: %w", p.Name, err)
	}
	return args, nil
}

// Accumulator merges the fragments of one model turn. Tool-call deltas are
// keyed by their stream index so that parallel calls never share a buffer,
// and iteration order follows first arrival.
type Accumulator struct {
	text    strings.Builder
	thought strings.Builder
	calls   *orderedmap.OrderedMap[int, *PendingCall]
	finish  parts.FinishReason
}

func New() *Accumulator {
	return &Accumulator{
		calls: orderedmap.New[int, *PendingCall](),
	}
}

// Add folds one fragment in. A fragment may carry several kinds of content
// at once; all of them are applied.
func (a *Accumulator) Add(f *parts.Fragment) {
	if f == nil {
		return
	}
	a.text.WriteString(f.Text)
	a.thought.WriteString(f.Thought)
	if tc := f.ToolCall; tc != nil {
		call, ok := a.calls.Get(tc.Index)
		if !ok {
			call = &PendingCall{}
			a.calls.Set(tc.Index, call)
		}
		// The id and name may arrive on a different fragment than the
		// argument text; take whichever fields are present.
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Name != "" {
			call.Name = tc.Name
		}
		call.args.WriteString(tc.ArgsDelta)
	}
	if f.FinishReason != parts.FinishNone {
		a.finish = f.FinishReason
	}
}

func (a *Accumulator) Text() string {
	return a.text.String()
}

func (a *Accumulator) Thought() string {
	return a.thought.String()
}

func (a *Accumulator) FinishReason() parts.FinishReason {
	return a.finish
}

// HasCalls reports whether any tool-call delta has been seen this turn.
func (a *Accumulator) HasCalls() bool {
	return a.calls.Len() > 0
}

// Calls returns the pending calls in arrival order.
func (a *Accumulator) Calls() []*PendingCall {
	calls := make([]*PendingCall, 0, a.calls.Len())
	for pair := a.calls.Oldest(); pair != nil; pair = pair.Next() {
		calls = append(calls, pair.Value)
	}
	return calls
}
