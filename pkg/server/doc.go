// Package server is the HTTP surface of the live-patch subsystem.
//
// It mounts the protocol routes (websocket handshake, poll fallback,
// invalid-target report) behind a chi router, issues the
// opaque session cookie that correlates them, serves the browser
// reconciler script, and exposes the Dispatcher application code queues
// patches through. Optional extras: a Prometheus /metrics endpoint and a
// development file watcher that broadcasts page reloads.
package server
