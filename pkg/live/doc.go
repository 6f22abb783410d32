// Package live delivers server-produced DOM patches to open browser
// sessions.
//
// The moving parts, leaves first:
//
//   - Conn wraps one upgraded websocket and exposes a locked
//     send-text/send-JSON surface plus a receive loop that only answers
//     keep-alive traffic.
//   - Registry maps a session identifier to the set of live connections
//     for that session (one per open tab).
//   - Dispatcher is the call surface for application code: it queues a
//     patch per session, pushes it immediately when a connection is open,
//     keeps it for the HTTP poll fallback otherwise, and owns the
//     single-shot cleanup callbacks that stop background work whose DOM
//     target has disappeared.
//
// Delivery is best-effort and at-least-once: a patch handed to at least
// one live connection is considered delivered, and nothing in this package
// ever fails the request that produced the patch.
package live
