// package sse implements the server-sent-events wire format used between
// the chat server and its clients: a Writer for the serving side and a
// Scanner for consumers.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event is one server-sent event.
type Event struct {
	// The name of the event.
	Event string `json:"event"`
	// The payload.
	Data string `json:"data"`
	// The ID of the event.
	ID string `json:"id"`
}

// Scanner reads events from a stream.
type Scanner struct {
	scanner *bufio.Scanner
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{scanner: bufio.NewScanner(r)}
}

// Scan reads the next event. It returns nil with io.EOF at the end of the
// stream.
func (s *Scanner) Scan() (*Event, error) {
	ev := &Event{}
	var err error
	var read1 bool
	for s.scanner.Scan() {
		l := s.scanner.Text()
		if l == "" {
			break
		}
		read1 = true
		colonPos := strings.Index(l, ":")
		if colonPos < 0 {
			// Invalid format -- still it should keep reading
			// for this block.
			err = errors.Join(err, fmt.Errorf("colon not found: %s", l))
			continue
		}
		if colonPos == 0 {
			// comment.
			continue
		}
		tag := l[:colonPos]
		data := strings.TrimSpace(l[(colonPos + 1):])
		switch tag {
		case "event":
			ev.Event = data
		case "data":
			if ev.Data != "" {
				ev.Data += "\n" + data
			} else {
				ev.Data = data
			}
		case "id":
			ev.ID = data
		default:
			// ignore others.
		}
	}
	if !read1 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Writer emits events onto an HTTP response, flushing after each event so
// the client observes them as they are produced.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter prepares w for an SSE stream. When w is an http.ResponseWriter
// the content-type headers are set and each event is flushed eagerly.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if rw, ok := w.(http.ResponseWriter); ok {
		rw.Header().Set("Content-Type", "text/event-stream")
		rw.Header().Set("Cache-Control", "no-cache")
		rw.Header().Set("Connection", "keep-alive")
		if f, ok := w.(http.Flusher); ok {
			sw.flusher = f
		}
	}
	return sw
}

// Write sends one event. Multi-line data is split onto repeated data:
// lines per the SSE format.
func (w *Writer) Write(ev *Event) error {
	if ev.Event != "" {
		if _, err := fmt.Fprintf(w.w, "event: %s\n", ev.Event); err != nil {
			return err
		}
	}
	if ev.ID != "" {
		if _, err := fmt.Fprintf(w.w, "id: %s\n", ev.ID); err != nil {
			return err
		}
	}
	for line := range strings.Lines(ev.Data) {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", strings.TrimSuffix(line, "\n")); err != nil {
			return err
		}
	}
	if ev.Data == "" {
		if _, err := fmt.Fprint(w.w, "data: \n"); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w.w, "\n"); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
