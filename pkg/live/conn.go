package live

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/michalCapo/p-sui/pkg/protocol"
)

// Sender is the outbound surface the registry needs from a connection.
type Sender interface {
	// SendText delivers one text message. It reports false on any write
	// error, after which the connection is closed and must be discarded.
	SendText(msg string) bool

	// SendJSON serializes v and delivers it as a text message.
	SendJSON(v any) bool

	// Close shuts the connection down. Safe to call more than once.
	Close()
}

// Conn wraps one upgraded websocket. Writes go through SendText/SendJSON
// under an exclusive lock so concurrent senders cannot interleave frame
// bytes; reads happen only on the connection's own receive loop.
type Conn struct {
	sock    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex
	closed  atomic.Bool

	readWait  time.Duration
	frameWait time.Duration
	writeWait time.Duration

	logger *slog.Logger
}

const (
	defaultReadWait  = time.Second
	defaultFrameWait = 10 * time.Second
	defaultWriteWait = 10 * time.Second
)

// NewConn wraps an upgraded socket. br is the server's buffered reader
// returned by the handshake; it may already hold client bytes and must be
// the source of all reads. A nil br gets a fresh buffer over the socket.
func NewConn(sock net.Conn, br *bufio.Reader, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if br == nil {
		br = bufio.NewReader(sock)
	}
	return &Conn{
		sock:      sock,
		reader:    br,
		readWait:  defaultReadWait,
		frameWait: defaultFrameWait,
		writeWait: defaultWriteWait,
		logger:    logger,
	}
}

// SendText sends one text frame. Returns false and closes the connection on
// any write error.
func (c *Conn) SendText(msg string) bool {
	return c.sendFrame(protocol.OpcodeText, []byte(msg))
}

// SendJSON sends v serialized as a compact JSON text frame.
func (c *Conn) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshal outbound message", "error", err)
		return false
	}
	return c.sendFrame(protocol.OpcodeText, data)
}

func (c *Conn) sendFrame(op protocol.Opcode, payload []byte) bool {
	if c.closed.Load() {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.sock.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := protocol.WriteFrame(c.sock, op, payload); err != nil {
		// Never leave a half-written frame on the stream.
		c.Close()
		return false
	}
	return true
}

// Run is the receive loop. It answers pings with pongs carrying the same
// payload and exits on a close frame, a decode error, or Close() from
// another goroutine.
//
// The loop waits for the next frame's first byte under a short deadline so
// it observes the closed flag within one readWait, without committing to a
// frame read. Bytes that trickle in during an expired wait stay in the
// buffer, so a slow client cannot desync the stream. Once a frame has
// started the peer gets frameWait to finish it; stalling mid-frame closes
// the connection.
//
// Run blocks; callers run it on the connection's own goroutine (or directly
// in the upgraded HTTP handler, which owns a goroutine already).
func (c *Conn) Run() {
	defer c.Close()

	for !c.closed.Load() {
		c.sock.SetReadDeadline(time.Now().Add(c.readWait))
		if _, err := c.reader.Peek(1); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return
		}

		c.sock.SetReadDeadline(time.Now().Add(c.frameWait))
		frame, err := protocol.ReadFrame(c.reader)
		if err != nil {
			return
		}

		switch frame.Opcode {
		case protocol.OpcodeClose:
			return
		case protocol.OpcodePing:
			c.sendFrame(protocol.OpcodePong, frame.Payload)
		}
	}
}

// Close shuts down both directions of the socket exactly once and unblocks
// the receive loop.
func (c *Conn) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.sock.Close()
	}
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}
