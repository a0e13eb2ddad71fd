// package marker serializes the orchestrator's structured tool-call units
// onto a flat text channel and decodes them back. The reserved delimiters
// wrap a JSON payload:
//
//	[TOOL_CALL_START]{...}[/TOOL_CALL_START]
//	[TOOL_CALL_RESULT]{...}[/TOOL_CALL_RESULT]
//
// Prose text is passed through unescaped. If the model echoes the literal
// delimiter tokens inside ordinary prose the decoder may misparse that
// block; this is an accepted limitation of the flat channel. A block whose
// payload is not valid JSON is replayed as literal text rather than failing
// the stream.
package marker

import (
	"encoding/json"
	"strings"

	"github.com/amitbl/pharmachat/pkg/chat"
)

type Kind string

const (
	KindStart  Kind = "tool_call_start"
	KindResult Kind = "tool_call_result"
)

const (
	startOpen   = "[TOOL_CALL_START]"
	startClose  = "[/TOOL_CALL_START]"
	resultOpen  = "[TOOL_CALL_RESULT]"
	resultClose = "[/TOOL_CALL_RESULT]"
)

// Event is one decoded structured unit.
type Event struct {
	Kind    Kind
	Payload chat.ToolCallEvent
}

// Piece is one decoder output: either plain text or a structured event.
type Piece struct {
	Text  string
	Event *Event
}

// EncodeStart renders a tool-call start unit for the flat channel.
func EncodeStart(ev *chat.ToolCallEvent) (string, error) {
	encoded, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return startOpen + string(encoded) + startClose, nil
}

// EncodeResult renders a tool-call result unit for the flat channel.
func EncodeResult(ev *chat.ToolCallEvent) (string, error) {
	encoded, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return resultOpen + string(encoded) + resultClose, nil
}

// EncodeUnit renders any orchestrator unit. Text and thought pass through
// as-is; thought is dropped by callers that do not want it before encoding.
func EncodeUnit(u *chat.Unit) (string, error) {
	switch {
	case u.ToolCallStart != nil:
		return EncodeStart(u.ToolCallStart)
	case u.ToolCallResult != nil:
		return EncodeResult(u.ToolCallResult)
	case u.Thought != "":
		return u.Thought, nil
	default:
		return u.Text, nil
	}
}

// Decoder is an incremental scanner over the flat channel. Chunks may split
// a delimiter or a payload at any byte; Feed returns the pieces that are
// decided so far and buffers the rest until more input or Flush.
type Decoder struct {
	buf    string
	inside bool
	kind   Kind
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func openToken(k Kind) string {
	if k == KindStart {
		return startOpen
	}
	return resultOpen
}

func closeToken(k Kind) string {
	if k == KindStart {
		return startClose
	}
	return resultClose
}

// suffixHold returns the length of the longest suffix of s that is a proper
// prefix of token.
func suffixHold(s, token string) int {
	max := len(token) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(token, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}

func (d *Decoder) decodeBlock(payload string) *Piece {
	var ev chat.ToolCallEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		// Malformed payload: replay the whole block as literal text.
		return &Piece{Text: openToken(d.kind) + payload + closeToken(d.kind)}
	}
	return &Piece{Event: &Event{Kind: d.kind, Payload: ev}}
}

// Feed consumes one chunk and returns the pieces decided by it.
func (d *Decoder) Feed(chunk string) []Piece {
	d.buf += chunk
	var pieces []Piece
	for {
		if d.inside {
			closeTok := closeToken(d.kind)
			idx := strings.Index(d.buf, closeTok)
			if idx < 0 {
				// Payload still open; wait for more input.
				return pieces
			}
			pieces = append(pieces, *d.decodeBlock(d.buf[:idx]))
			d.buf = d.buf[idx+len(closeTok):]
			d.inside = false
			continue
		}

		startIdx := strings.Index(d.buf, startOpen)
		resultIdx := strings.Index(d.buf, resultOpen)
		idx, kind := startIdx, KindStart
		if idx < 0 || (resultIdx >= 0 && resultIdx < idx) {
			idx, kind = resultIdx, KindResult
		}
		if idx < 0 {
			// No opener: everything is text except a suffix that might
			// grow into one.
			hold := suffixHold(d.buf, startOpen)
			if h := suffixHold(d.buf, resultOpen); h > hold {
				hold = h
			}
			if cut := len(d.buf) - hold; cut > 0 {
				pieces = append(pieces, Piece{Text: d.buf[:cut]})
				d.buf = d.buf[cut:]
			}
			return pieces
		}
		if idx > 0 {
			pieces = append(pieces, Piece{Text: d.buf[:idx]})
		}
		d.buf = d.buf[idx+len(openToken(kind)):]
		d.inside = true
		d.kind = kind
	}
}

// Flush ends the stream: whatever is still buffered comes back as literal
// text, including an unterminated marker block.
func (d *Decoder) Flush() []Piece {
	var pieces []Piece
	if d.inside {
		d.buf = openToken(d.kind) + d.buf
		d.inside = false
	}
	if d.buf != "" {
		pieces = append(pieces, Piece{Text: d.buf})
		d.buf = ""
	}
	return pieces
}

// Decode runs the decoder over a complete string, returning the plain text
// with all marker blocks stripped and the decoded events in order.
func Decode(s string) (string, []Event) {
	d := NewDecoder()
	var text strings.Builder
	var events []Event
	collect := func(pieces []Piece) {
		for _, p := range pieces {
			if p.Event != nil {
				events = append(events, *p.Event)
			} else {
				text.WriteString(p.Text)
			}
		}
	}
	collect(d.Feed(s))
	collect(d.Flush())
	return text.String(), events
}
