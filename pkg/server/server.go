// package server exposes the orchestrator over HTTP. The chat endpoint
// streams the flat text channel as server-sent events; structured tool-call
// units are marker-encoded into it, and clients recover them with the
// incremental marker decoder.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/amitbl/pharmachat/pkg/auth"
	"github.com/amitbl/pharmachat/pkg/chat"
	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/identity"
	"github.com/amitbl/pharmachat/pkg/session"
	"github.com/amitbl/pharmachat/pkg/sse"
	"github.com/amitbl/pharmachat/pkg/store"
)

// Server serves chat requests with one orchestrator built at startup and
// injected here; there is no global instance.
type Server struct {
	orch     *chat.Orchestrator
	store    *store.Store
	logLevel slog.Level

	mu     sync.Mutex
	tokens map[string]identity.Context
}

func New(orch *chat.Orchestrator, st *store.Store, logLevel slog.Level) *Server {
	return &Server{
		orch:     orch,
		store:    st,
		logLevel: logLevel,
		tokens:   map[string]identity.Context{},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	ic, err := auth.Login(s.store, req.Username, req.Password)
	if err != nil {
		// The same generic answer for unknown users and wrong passwords.
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = ic
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token:    token,
		Username: ic[identity.FieldUsername],
	})
}

func (s *Server) identityFor(r *http.Request) identity.Context {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[token]
}

type chatRequest struct {
	Message          string          `json:"message"`
	History          []parts.Message `json:"history,omitempty"`
	IncludeToolCalls bool            `json:"include_tool_calls"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	sess, err := session.New(r.RemoteAddr, s.logLevel)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer sess.Close()
	if err := sess.Init(); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	ctx := sess.With(r.Context())
	logger, err := sess.GetLogger("server")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	recorder := &chat.Recorder{}
	writer := sse.NewWriter(w)
	for unit, err := range s.orch.StreamResponse(ctx, chat.Request{
		Message:          req.Message,
		History:          req.History,
		Identity:         s.identityFor(r),
		IncludeToolCalls: req.IncludeToolCalls,
		Recorder:         recorder,
	}) {
		if err != nil {
			// The loop already yielded a user-safe text unit; the cause
			// stays in the server log.
			logger.Error("request failed", "error", err)
			break
		}
		if unit.Thought != "" {
			// Reasoning does not reach the flat channel.
			continue
		}
		encoded, err := marshalUnit(unit)
		if err != nil {
			logger.Error("failed to encode unit", "error", err)
			continue
		}
		if err := writer.Write(&sse.Event{Event: "message", Data: encoded}); err != nil {
			// Client went away; the pull-driven loop stops with us.
			logger.Info("client disconnected", "error", err)
			return
		}
	}

	logger.Info("request finished",
		"state", recorder.Final, "iterations", len(recorder.Iterations))
	writer.Write(&sse.Event{Event: "done"})
}
