package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// ─── Streamable HTTP Transport ──────────────────────────────────────────────
//
// POST   /mcp → JSON-RPC request/response
// DELETE /mcp → close session
//
// There are no server-initiated messages, so GET answers 405 as the
// protocol allows. Sessions are tracked via the Mcp-Session-Id header.

const sessionHeader = "Mcp-Session-Id"

// Transport provides the HTTP handler for the MCP endpoint.
type Transport struct {
	gateway  *Gateway
	mu       sync.RWMutex
	sessions map[string]struct{}
}

// NewTransport creates a transport over gateway.
func NewTransport(gateway *Gateway) *Transport {
	return &Transport{
		gateway:  gateway,
		sessions: make(map[string]struct{}),
	}
}

// ServeHTTP implements http.Handler.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodDelete:
		t.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (t *Transport) handlePost(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "Empty request body", http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	resp := t.gateway.HandleRequest(r.Context(), body)

	if sessionID == "" && resp != nil && resp.Error == nil && isInitialize(body) {
		sessionID = uuid.NewString()
		t.mu.Lock()
		t.sessions[sessionID] = struct{}{}
		t.mu.Unlock()
		t.gateway.log.Info("session opened", "session", sessionID)
	}
	if sessionID != "" {
		w.Header().Set(sessionHeader, sessionID)
	}

	// Notifications get no body.
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (t *Transport) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, "Mcp-Session-Id required", http.StatusBadRequest)
		return
	}

	t.mu.Lock()
	_, ok := t.sessions[sessionID]
	delete(t.sessions, sessionID)
	t.mu.Unlock()

	if !ok {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}
	t.gateway.log.Info("session closed", "session", sessionID)
	w.WriteHeader(http.StatusOK)
}

// SessionCount returns the number of open sessions.
func (t *Transport) SessionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func isInitialize(body []byte) bool {
	var req struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return false
	}
	return req.Method == "initialize"
}
