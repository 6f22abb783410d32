package live

import (
	"log/slog"
	"sync"
)

// Registry maps a session identifier to the set of live connections for
// that session. A session may have several connections at once (one per
// open tab). A single coarse lock guards the map; delivery snapshots the
// connection set and sends with the lock released so slow sockets never
// block registration.
//
// Registries are plain constructed values so independent instances can run
// side by side in tests.
type Registry struct {
	mu       sync.Mutex
	sessions map[string][]Sender

	metrics *Metrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string][]Sender),
		logger:   logger.With("component", "live.registry"),
	}
}

// SetMetrics attaches a metrics collector. Call before serving traffic.
func (r *Registry) SetMetrics(m *Metrics) {
	r.metrics = m
}

// Register adds a connection to the session's set. No-op for an empty
// session identifier.
func (r *Registry) Register(session string, conn Sender) {
	if session == "" {
		return
	}
	r.mu.Lock()
	r.sessions[session] = append(r.sessions[session], conn)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.connections.Inc()
	}
}

// Unregister removes a connection from the session's set, deleting the
// session entry entirely when its set becomes empty.
func (r *Registry) Unregister(session string, conn Sender) {
	if session == "" {
		return
	}

	r.mu.Lock()
	conns := r.sessions[session]
	removed := false
	for i, c := range conns {
		if c == conn {
			conns = append(conns[:i], conns[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		if len(conns) == 0 {
			delete(r.sessions, session)
		} else {
			r.sessions[session] = conns
		}
	}
	r.mu.Unlock()

	if removed && r.metrics != nil {
		r.metrics.connections.Dec()
	}
}

// SendPatches delivers patches to every connection of the session.
// Connections whose send fails are unregistered. Returns true iff at least
// one connection accepted the message.
func (r *Registry) SendPatches(session string, patches []Patch) bool {
	if session == "" || len(patches) == 0 {
		return false
	}

	targets := r.snapshot(session)
	if len(targets) == 0 {
		return false
	}

	msg := Message{Type: MessagePatch, Patches: patches}
	delivered := false
	for _, conn := range targets {
		if conn.SendJSON(msg) {
			delivered = true
		} else {
			r.Unregister(session, conn)
			if r.metrics != nil {
				r.metrics.sendFailures.Inc()
			}
		}
	}
	return delivered
}

// BroadcastReload tells every connection of every session to reload the
// page. Used by the development file watcher; shares the registry but is
// orthogonal to patch delivery.
func (r *Registry) BroadcastReload() {
	r.mu.Lock()
	all := make(map[string][]Sender, len(r.sessions))
	for session, conns := range r.sessions {
		all[session] = append([]Sender(nil), conns...)
	}
	r.mu.Unlock()

	msg := Message{Type: MessageReload}
	for session, conns := range all {
		for _, conn := range conns {
			if !conn.SendJSON(msg) {
				r.Unregister(session, conn)
			}
		}
	}

	if r.metrics != nil {
		r.metrics.reloads.Inc()
	}
}

// Connections returns the number of live connections for a session.
func (r *Registry) Connections(session string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[session])
}

// Sessions returns the number of sessions with at least one connection.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every registered connection and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]Sender, 0, len(r.sessions))
	for _, conns := range r.sessions {
		all = append(all, conns...)
	}
	r.sessions = make(map[string][]Sender)
	r.mu.Unlock()

	for _, conn := range all {
		conn.Close()
	}
	if r.metrics != nil {
		r.metrics.connections.Set(0)
	}
}

// snapshot copies the session's connection set under the lock so delivery
// happens without holding it.
func (r *Registry) snapshot(session string) []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.sessions[session]
	if len(conns) == 0 {
		return nil
	}
	return append([]Sender(nil), conns...)
}
