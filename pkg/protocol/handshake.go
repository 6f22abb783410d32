package protocol

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// handshakeGUID is the fixed GUID appended to the client key when computing
// the accept token (RFC 6455 §1.3).
const handshakeGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Handshake errors. Upgrade performs all validation before hijacking the
// connection, so on error the caller can still write an ordinary HTTP
// response.
var (
	ErrMethodNotAllowed = errors.New("protocol: websocket handshake requires GET")
	ErrNotWebSocket     = errors.New("protocol: missing websocket upgrade header")
	ErrMissingKey       = errors.New("protocol: missing Sec-WebSocket-Key header")
	ErrNotHijackable    = errors.New("protocol: response writer does not support hijacking")
)

// AcceptKey computes the Sec-WebSocket-Accept token for a client-supplied
// key: base64(SHA-1(key + GUID)).
func AcceptKey(key string) string {
	h := sha1.New()
	io.WriteString(h, key)
	io.WriteString(h, handshakeGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsUpgrade reports whether r asks for a websocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}

// Upgrade validates the handshake request, hijacks the underlying
// connection, and writes the 101 Switching Protocols response including the
// computed accept token. Extra response headers (e.g. Set-Cookie for a
// freshly issued session) are written verbatim.
//
// The returned reader must be used for all subsequent reads: it is the
// server's buffered reader and may already hold bytes the client sent after
// the handshake.
func Upgrade(w http.ResponseWriter, r *http.Request, extra http.Header) (net.Conn, *bufio.Reader, error) {
	if r.Method != http.MethodGet {
		return nil, nil, ErrMethodNotAllowed
	}
	if !IsUpgrade(r) {
		return nil, nil, ErrNotWebSocket
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, nil, ErrMissingKey
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, ErrNotHijackable
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	buf.WriteString("Upgrade: websocket\r\n")
	buf.WriteString("Connection: Upgrade\r\n")
	buf.WriteString("Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n")
	for name, values := range extra {
		for _, v := range values {
			buf.WriteString(name + ": " + v + "\r\n")
		}
	}
	buf.WriteString("\r\n")

	// The HTTP server may have armed deadlines for the request; the socket
	// now lives for the whole browser session.
	conn.SetDeadline(time.Time{})

	if _, err := conn.Write(buf.Bytes()); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, rw.Reader, nil
}
