// package session scopes logging and tracing to one chat request. A session
// owns a directory under the user cache dir holding a TOML metadata file and
// per-component JSONL log files.
package session

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const sessionMetaFile = "session.toml"

type sessionMeta struct {
	SessionID string    `toml:"session_id"`
	Timestamp time.Time `toml:"timestamp"`
	Origin    string    `toml:"origin,omitempty"`
}

type logHandler struct {
	f *os.File
	h slog.Handler
}

func newLogHandler(p string, opts *slog.HandlerOptions) (*logHandler, error) {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &logHandler{
		f: f,
		h: slog.NewJSONHandler(f, opts),
	}, nil
}

func (h *logHandler) Close() error {
	return h.f.Close()
}

// Session identifies one chat request for logging purposes.
type Session struct {
	meta        sessionMeta
	sessionPath string
	level       slog.Level

	handlers map[string]*logHandler
}

func (s *Session) ID() string {
	return s.meta.SessionID
}

func (s *Session) Timestamp() time.Time {
	return s.meta.Timestamp
}

// Init materializes the session directory and its metadata file. It is safe
// to call more than once.
func (s *Session) Init() error {
	if err := os.MkdirAll(s.sessionPath, 0755); err != nil {
		return err
	}
	metaFile := filepath.Join(s.sessionPath, sessionMetaFile)
	encodedMeta, err := toml.Marshal(s.meta)
	if err != nil {
		return err
	}
	return os.WriteFile(metaFile, encodedMeta, 0644)
}

func (s *Session) logPath() string {
	return filepath.Join(s.sessionPath, "logs")
}

// GetLogger returns a JSONL logger named after a component ("chat",
// "openai", "tools", ...). Handlers are cached per name and closed together
// with the session.
func (s *Session) GetLogger(name string) (*slog.Logger, error) {
	if h, ok := s.handlers[name]; ok {
		return slog.New(h.h), nil
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("malformed log name %s", name)
	}
	if err := os.MkdirAll(s.logPath(), 0755); err != nil {
		return nil, err
	}
	h, err := newLogHandler(filepath.Join(s.logPath(), name+".jsonl"), &slog.HandlerOptions{
		Level: s.level,
	})
	if err != nil {
		return nil, err
	}
	s.handlers[name] = h
	return slog.New(h.h), nil
}

// GetLogFile opens a raw log file in the session's log directory for
// components that write their own format.
func (s *Session) GetLogFile(name string) (*os.File, error) {
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("malformed log name %s", name)
	}
	if err := os.MkdirAll(s.logPath(), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(s.logPath(), name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

func (s *Session) Close() error {
	var allerr error
	for name, h := range s.handlers {
		if err := h.Close(); err != nil {
			allerr = errors.Join(allerr, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	s.handlers = map[string]*logHandler{}
	return allerr
}

// New creates a session rooted under the user cache dir. origin describes
// where the request came from (a remote address or "cli") and ends up in the
// metadata file only.
func New(origin string, level slog.Level) (*Session, error) {
	now := time.Now()
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		log.Printf("Failed to obtain the user cache dir: %v", err)
		log.Printf("Falls back to the temporary directory...")
		tempDir, err := os.MkdirTemp("", "pharmachat")
		if err != nil {
			return nil, err
		}
		return &Session{
			meta: sessionMeta{
				Timestamp: now,
				Origin:    origin,
			},
			sessionPath: tempDir,
			level:       level,
			handlers:    map[string]*logHandler{},
		}, nil
	}

	sessionUUID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &Session{
		meta: sessionMeta{
			SessionID: sessionUUID.String(),
			Timestamp: now,
			Origin:    origin,
		},
		sessionPath: filepath.Join(cacheDir, "pharmachat", "sessions", sessionUUID.String()),
		level:       level,
		handlers:    map[string]*logHandler{},
	}, nil
}
