package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/michalCapo/p-sui/pkg/live"
	"github.com/michalCapo/p-sui/pkg/protocol"
)

// handleWebSocket upgrades the request, registers the connection under the
// caller's session, flushes any patches queued before the socket opened,
// and then runs the receive loop on the handler's goroutine until the
// client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	info := sessionFrom(r.Context())

	extra := http.Header{}
	if info.newCookie != nil {
		extra.Add("Set-Cookie", info.newCookie.String())
	}

	sock, br, err := protocol.Upgrade(w, r, extra)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrMethodNotAllowed):
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		case errors.Is(err, protocol.ErrNotWebSocket), errors.Is(err, protocol.ErrMissingKey):
			http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		default:
			// Hijack failed; the connection is unusable.
			s.logger.Error("websocket upgrade failed", "error", err)
		}
		return
	}

	conn := live.NewConn(sock, br, s.logger)
	s.registry.Register(info.id, conn)
	defer func() {
		s.registry.Unregister(info.id, conn)
		conn.Close()
	}()

	// Anything queued while no socket was open goes out first.
	s.dispatcher.PushPending(info.id)

	conn.Run()
}

type pollResponse struct {
	Patches []live.Patch `json:"patches"`
}

// handlePoll drains the session's pending queue. The polling fallback must
// work with no websocket open at all.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	patches := s.dispatcher.DrainPatches(SessionID(r.Context()))
	if patches == nil {
		patches = []live.Patch{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(pollResponse{Patches: patches}); err != nil {
		s.logger.Debug("poll write failed", "error", err)
	}
}

type invalidReport struct {
	ID string `json:"id"`
}

// handleInvalid receives the client's report that a patch target no longer
// exists in the DOM and fires the registered cleanup. Malformed bodies are
// ignored; the report is fire-and-forget on the client side.
func (s *Server) handleInvalid(w http.ResponseWriter, r *http.Request) {
	var report invalidReport
	if err := json.NewDecoder(r.Body).Decode(&report); err == nil && report.ID != "" {
		s.dispatcher.NotifyInvalid(SessionID(r.Context()), report.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClientScript serves the browser reconciler.
func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(ClientScript))
}
