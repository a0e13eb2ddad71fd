package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amitbl/pharmachat/pkg/auth"
	"github.com/amitbl/pharmachat/pkg/chat"
	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/marker"
	"github.com/amitbl/pharmachat/pkg/sse"
	"github.com/amitbl/pharmachat/pkg/store"
	"github.com/amitbl/pharmachat/pkg/tools"
)

type scriptedTransport struct {
	turns [][]parts.Fragment
	calls int
}

func (t *scriptedTransport) Stream(ctx context.Context, msgs []parts.Message) iter.Seq2[*parts.Fragment, error] {
	call := t.calls
	t.calls++
	return func(yield func(*parts.Fragment, error) bool) {
		turn := t.turns[len(t.turns)-1]
		if call < len(t.turns) {
			turn = t.turns[call]
		}
		for i := range turn {
			if !yield(&turn[i], nil) {
				return
			}
		}
	}
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	hash, err := auth.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	dir := t.TempDir()
	write := func(name string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("users.json", []store.User{
		{ID: "user-1", Username: "dana", PasswordHash: hash, FullNameEn: "Dana Levi"},
	})
	write("medications.json", []store.Medication{
		{ID: "med-1", NameEn: "Amoxicillin", NameHe: "אמוקסיצילין", RequiresRx: true},
	})
	write("prescriptions.json", []store.Prescription{
		{ID: "rx-1", UserID: "user-1", MedicationID: "med-1", Dosage: "500mg x3/day"},
	})
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return s
}

func testServer(t *testing.T, tr chat.Transport) *httptest.Server {
	t.Helper()
	st := testStore(t)
	defs, err := tools.NewPharmacy(st).ToolDefs(t.Context())
	if err != nil {
		t.Fatalf("ToolDefs: %v", err)
	}
	runner, err := tools.NewRunner(defs)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	srv := httptest.NewServer(New(chat.NewOrchestrator(tr, runner), st, slog.LevelInfo).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readStream consumes the SSE response and decodes the marker channel back
// into plain text and structured events.
func readStream(t *testing.T, body io.Reader) (string, []marker.Event) {
	t.Helper()
	scanner := sse.NewScanner(body)
	decoder := marker.NewDecoder()
	var text strings.Builder
	var events []marker.Event
	consume := func(pieces []marker.Piece) {
		for _, p := range pieces {
			if p.Event != nil {
				events = append(events, *p.Event)
			} else {
				text.WriteString(p.Text)
			}
		}
	}
	sawDone := false
	for {
		ev, err := scanner.Scan()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		switch ev.Event {
		case "message":
			var flat string
			if err := json.Unmarshal([]byte(ev.Data), &flat); err != nil {
				t.Fatalf("bad message payload %q: %v", ev.Data, err)
			}
			consume(decoder.Feed(flat))
		case "done":
			sawDone = true
		}
	}
	consume(decoder.Flush())
	if !sawDone {
		t.Error("stream ended without a done event")
	}
	return text.String(), events
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, &scriptedTransport{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestLogin(t *testing.T) {
	srv := testServer(t, &scriptedTransport{})

	resp := postJSON(t, srv.URL+"/api/login", "", map[string]string{
		"username": "dana", "password": "s3cret-pass",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var lr struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lr.Token == "" || lr.Username != "dana" {
		t.Errorf("login response = %+v", lr)
	}

	resp = postJSON(t, srv.URL+"/api/login", "", map[string]string{
		"username": "dana", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestChatPlainText(t *testing.T) {
	tr := &scriptedTransport{turns: [][]parts.Fragment{{
		{Text: "We close at 20:00."},
		{FinishReason: parts.FinishStop},
	}}}
	srv := testServer(t, tr)

	resp := postJSON(t, srv.URL+"/api/chat", "", map[string]any{
		"message": "When do you close?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	text, events := readStream(t, resp.Body)
	if text != "We close at 20:00." {
		t.Errorf("text = %q", text)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none", events)
	}
}

func TestChatAuthenticatedToolFlow(t *testing.T) {
	tr := &scriptedTransport{turns: [][]parts.Fragment{
		{
			{ToolCall: &parts.ToolCallDelta{Index: 0, ID: "call_1", Name: "get_my_prescriptions", ArgsDelta: "{}"}},
			{FinishReason: parts.FinishToolCalls},
		},
		{
			{Text: "You have one prescription: Amoxicillin, 500mg x3/day."},
			{FinishReason: parts.FinishStop},
		},
	}}
	srv := testServer(t, tr)

	resp := postJSON(t, srv.URL+"/api/login", "", map[string]string{
		"username": "dana", "password": "s3cret-pass",
	})
	var lr struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	resp = postJSON(t, srv.URL+"/api/chat", lr.Token, map[string]any{
		"message":            "What prescriptions do I have?",
		"include_tool_calls": true,
	})
	text, events := readStream(t, resp.Body)
	if !strings.Contains(text, "Amoxicillin") {
		t.Errorf("text = %q", text)
	}
	if len(events) != 2 {
		t.Fatalf("got %d marker events, want start and result: %+v", len(events), events)
	}
	if events[0].Kind != marker.KindStart || events[0].Payload.ToolName != "get_my_prescriptions" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Kind != marker.KindResult || !events[1].Payload.Success {
		t.Errorf("event 1 = %+v", events[1])
	}
}

func TestChatUnauthenticatedToolRejected(t *testing.T) {
	tr := &scriptedTransport{turns: [][]parts.Fragment{
		{
			{ToolCall: &parts.ToolCallDelta{Index: 0, ID: "call_1", Name: "get_my_prescriptions", ArgsDelta: "{}"}},
			{FinishReason: parts.FinishToolCalls},
		},
		{
			{Text: "Please sign in first."},
			{FinishReason: parts.FinishStop},
		},
	}}
	srv := testServer(t, tr)

	resp := postJSON(t, srv.URL+"/api/chat", "", map[string]any{
		"message":            "What prescriptions do I have?",
		"include_tool_calls": true,
	})
	text, events := readStream(t, resp.Body)
	if len(events) != 2 {
		t.Fatalf("got %d marker events: %+v", len(events), events)
	}
	if events[1].Payload.Success {
		t.Errorf("anonymous tool call succeeded: %+v", events[1])
	}
	if !strings.Contains(text, "sign in") {
		t.Errorf("text = %q", text)
	}
}
