package live

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/michalCapo/p-sui/pkg/protocol"
)

// writeClientFrame writes a masked frame to w the way a browser would.
func writeClientFrame(t *testing.T, w net.Conn, op protocol.Opcode, payload []byte) {
	t.Helper()

	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	var buf bytes.Buffer
	buf.WriteByte(0x80 | byte(op))
	switch l := len(payload); {
	case l < 126:
		buf.WriteByte(0x80 | byte(l))
	default:
		buf.WriteByte(0x80 | 126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(l))
		buf.Write(ext[:])
	}
	buf.Write(mask[:])
	for i, b := range payload {
		buf.WriteByte(b ^ mask[i%4])
	}

	w.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := w.Write(buf.Bytes()); err != nil {
		t.Fatalf("write client frame: %v", err)
	}
}

// readServerFrame reads one unmasked server frame from the peer side.
func readServerFrame(t *testing.T, r net.Conn) protocol.Frame {
	t.Helper()
	r.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := protocol.ReadFrame(r)
	if err != nil {
		t.Fatalf("read server frame: %v", err)
	}
	return frame
}

func newTestConn(t *testing.T) (*Conn, net.Conn, chan struct{}) {
	t.Helper()
	server, client := net.Pipe()
	conn := NewConn(server, nil, nil)

	done := make(chan struct{})
	go func() {
		conn.Run()
		close(done)
	}()

	t.Cleanup(func() {
		conn.Close()
		client.Close()
	})
	return conn, client, done
}

func waitClosed(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receive loop did not exit")
	}
}

func TestConnSendText(t *testing.T) {
	conn, client, _ := newTestConn(t)

	go func() {
		frame := readServerFrame(t, client)
		if frame.Opcode != protocol.OpcodeText {
			t.Errorf("opcode = %v, want Text", frame.Opcode)
		}
		if string(frame.Payload) != "hello" {
			t.Errorf("payload = %q, want hello", frame.Payload)
		}
	}()

	if !conn.SendText("hello") {
		t.Error("SendText() = false, want true")
	}
}

func TestConnSendJSON(t *testing.T) {
	conn, client, _ := newTestConn(t)

	got := make(chan Message, 1)
	go func() {
		frame := readServerFrame(t, client)
		var msg Message
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		got <- msg
	}()

	sent := Message{Type: MessagePatch, Patches: []Patch{{TargetID: "x", Swap: SwapAppend, HTML: "<li>1</li>"}}}
	if !conn.SendJSON(sent) {
		t.Fatal("SendJSON() = false, want true")
	}

	msg := <-got
	if msg.Type != MessagePatch || len(msg.Patches) != 1 || msg.Patches[0] != sent.Patches[0] {
		t.Errorf("received %+v, want %+v", msg, sent)
	}
}

func TestConnAnswersPingWithPong(t *testing.T) {
	_, client, _ := newTestConn(t)

	writeClientFrame(t, client, protocol.OpcodePing, []byte("keepalive"))

	frame := readServerFrame(t, client)
	if frame.Opcode != protocol.OpcodePong {
		t.Fatalf("opcode = %v, want Pong", frame.Opcode)
	}
	if string(frame.Payload) != "keepalive" {
		t.Errorf("pong payload = %q, want same as ping", frame.Payload)
	}
}

func TestConnReassemblesFrameSplitAcrossReadDeadlines(t *testing.T) {
	server, client := net.Pipe()
	conn := NewConn(server, nil, nil)
	conn.readWait = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		conn.Run()
		close(done)
	}()
	t.Cleanup(func() {
		conn.Close()
		client.Close()
	})

	// A ping frame delivered in two writes, with a pause long enough for
	// several read deadlines to expire in between. The half-received bytes
	// must stay put; the loop may not restart parsing mid-frame.
	mask := [4]byte{0x12, 0x34, 0x56, 0x78}
	payload := []byte("slow")
	frame := []byte{0x80 | byte(protocol.OpcodePing), 0x80 | byte(len(payload))}
	frame = append(frame, mask[:]...)
	for i, b := range payload {
		frame = append(frame, b^mask[i%4])
	}

	client.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := client.Write(frame[:3]); err != nil {
		t.Fatalf("write first half: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := client.Write(frame[3:]); err != nil {
		t.Fatalf("write second half: %v", err)
	}

	got := readServerFrame(t, client)
	if got.Opcode != protocol.OpcodePong {
		t.Fatalf("opcode = %v, want Pong", got.Opcode)
	}
	if string(got.Payload) != "slow" {
		t.Errorf("pong payload = %q, want %q", got.Payload, "slow")
	}
}

func TestConnExitsOnCloseFrame(t *testing.T) {
	conn, client, done := newTestConn(t)

	writeClientFrame(t, client, protocol.OpcodeClose, nil)
	waitClosed(t, done)

	if !conn.Closed() {
		t.Error("Closed() = false after close frame")
	}
	if conn.SendText("late") {
		t.Error("SendText() = true on closed connection")
	}
}

func TestConnExitsOnPeerDisconnect(t *testing.T) {
	conn, client, done := newTestConn(t)

	client.Close()
	waitClosed(t, done)

	if !conn.Closed() {
		t.Error("Closed() = false after peer disconnect")
	}
}

func TestConnCloseUnblocksRun(t *testing.T) {
	conn, _, done := newTestConn(t)

	conn.Close()
	waitClosed(t, done)
}

func TestConnCloseIdempotent(t *testing.T) {
	conn, _, done := newTestConn(t)

	conn.Close()
	conn.Close()
	conn.Close()
	waitClosed(t, done)
}

func TestConnSendFailsAfterPeerGone(t *testing.T) {
	conn, client, done := newTestConn(t)

	client.Close()
	waitClosed(t, done)

	if conn.SendText("nobody home") {
		t.Error("SendText() = true after peer closed")
	}
}
