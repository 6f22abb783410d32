package live

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// cleanupKey addresses a registered cleanup callback.
type cleanupKey struct {
	session string
	target  string
}

// queuedPatch tags a pending patch with its enqueue sequence number so a
// push can later clear exactly the entries it delivered, even when a drain
// and a fresh enqueue raced with the send.
type queuedPatch struct {
	seq   uint64
	patch Patch
}

// Dispatcher is the single call surface application code uses to apply a
// patch to a session. It decouples patch production from delivery:
// immediate push over an open connection when possible, the per-session
// pending queue and HTTP poll fallback otherwise.
//
// The dispatcher also bookkeeps cleanup callbacks keyed by
// (session, targetId). A cleanup runs at most once, when the client reports
// that the patch's target no longer exists in the DOM; registering a new
// cleanup for the same key supersedes the previous one. This is what stops
// a server-side timer whose rendering target has been navigated away from.
type Dispatcher struct {
	registry *Registry

	mu       sync.Mutex
	seq      uint64
	pending  map[string][]queuedPatch
	cleanups map[cleanupKey]func()

	metrics *Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher bound to its registry. The dispatcher
// owns the pending queues; the registry owns the connections.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		pending:  make(map[string][]queuedPatch),
		cleanups: make(map[cleanupKey]func()),
		logger:   logger.With("component", "live.dispatcher"),
	}
}

// SetMetrics attaches a metrics collector. Call before serving traffic.
func (d *Dispatcher) SetMetrics(m *Metrics) {
	d.metrics = m
}

// Registry returns the connection registry the dispatcher delivers through.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// QueuePatch appends a patch to the session's pending queue and attempts an
// immediate push. A missing session or target id is a normal condition
// (client navigated elsewhere), not an error: the cleanup runs synchronously
// and nothing is queued. QueuePatch never fails the caller.
func (d *Dispatcher) QueuePatch(session string, patch Patch, cleanup func()) {
	if session == "" || patch.TargetID == "" {
		d.runCleanup(cleanup)
		return
	}

	d.mu.Lock()
	d.seq++
	d.pending[session] = append(d.pending[session], queuedPatch{seq: d.seq, patch: patch})
	if cleanup != nil {
		// Last registration for the key wins.
		d.cleanups[cleanupKey{session, patch.TargetID}] = cleanup
	}
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.patchesQueued.Inc()
	}

	d.PushPending(session)
}

// PushPending attempts to hand the session's pending patches to a live
// connection. On success the delivered entries are cleared; on failure the
// queue is left intact for a later poll. Called after QueuePatch and when a
// new websocket opens.
func (d *Dispatcher) PushPending(session string) {
	if session == "" {
		return
	}

	d.mu.Lock()
	queued := append([]queuedPatch(nil), d.pending[session]...)
	d.mu.Unlock()
	if len(queued) == 0 {
		return
	}

	patches := make([]Patch, len(queued))
	for i, q := range queued {
		patches[i] = q.patch
	}
	if !d.registry.SendPatches(session, patches) {
		return
	}

	if d.metrics != nil {
		d.metrics.patchesPushed.Add(float64(len(queued)))
	}

	// Clear exactly the entries that were handed over, identified by
	// sequence number. A concurrent drain may have already removed some of
	// them (the poll redelivers, at-least-once), and entries queued while
	// the send was in flight carry later sequence numbers, so they survive.
	lastSent := queued[len(queued)-1].seq
	d.mu.Lock()
	q := d.pending[session]
	for len(q) > 0 && q[0].seq <= lastSent {
		q = q[1:]
	}
	if len(q) == 0 {
		delete(d.pending, session)
	} else {
		d.pending[session] = q
	}
	d.mu.Unlock()
}

// DrainPatches atomically pops and returns the session's entire pending
// queue in FIFO order. Each call returns only patches queued since the
// previous drain. Serves the HTTP poll fallback.
func (d *Dispatcher) DrainPatches(session string) []Patch {
	if session == "" {
		return nil
	}

	d.mu.Lock()
	queued := d.pending[session]
	delete(d.pending, session)
	d.mu.Unlock()

	if len(queued) == 0 {
		return nil
	}
	if d.metrics != nil {
		d.metrics.patchesPolled.Add(float64(len(queued)))
	}
	patches := make([]Patch, len(queued))
	for i, q := range queued {
		patches[i] = q.patch
	}
	return patches
}

// NotifyInvalid reports that the patch target no longer exists in the
// client's DOM. The cleanup registered for (session, targetId) runs exactly
// once; later calls for the same key are no-ops. Not an error condition:
// nothing is logged as a failure.
func (d *Dispatcher) NotifyInvalid(session, targetID string) {
	if session == "" || targetID == "" {
		return
	}

	d.mu.Lock()
	key := cleanupKey{session, targetID}
	cleanup := d.cleanups[key]
	delete(d.cleanups, key)
	d.mu.Unlock()

	d.runCleanup(cleanup)
}

// PendingCount returns the number of patches queued for a session.
func (d *Dispatcher) PendingCount(session string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending[session])
}

// runCleanup invokes a cleanup callback, recovering panics so application
// cleanup code can never take the delivery path down.
func (d *Dispatcher) runCleanup(cleanup func()) {
	if cleanup == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("cleanup panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	cleanup()

	if d.metrics != nil {
		d.metrics.cleanupsRun.Inc()
	}
}
