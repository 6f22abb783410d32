package protocol

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAcceptKey(t *testing.T) {
	// The RFC 6455 §1.3 example handshake.
	const key = "dGhlIHNhbXBsZSBub25jZQ=="
	const want = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	if got := AcceptKey(key); got != want {
		t.Errorf("AcceptKey(%q) = %q, want %q", key, got, want)
	}

	// Deterministic per key.
	if AcceptKey(key) != AcceptKey(key) {
		t.Error("AcceptKey() not deterministic")
	}
	if AcceptKey("other") == want {
		t.Error("AcceptKey() should differ for a different key")
	}
}

func TestUpgradeRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		headers map[string]string
		wantErr error
	}{
		{
			name:    "non_get",
			method:  http.MethodPost,
			headers: map[string]string{"Upgrade": "websocket", "Sec-WebSocket-Key": "abc"},
			wantErr: ErrMethodNotAllowed,
		},
		{
			name:    "missing_upgrade_header",
			method:  http.MethodGet,
			headers: map[string]string{"Sec-WebSocket-Key": "abc"},
			wantErr: ErrNotWebSocket,
		},
		{
			name:    "missing_key",
			method:  http.MethodGet,
			headers: map[string]string{"Upgrade": "websocket"},
			wantErr: ErrMissingKey,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, "/_psui/ws", nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			_, _, err := Upgrade(w, r, nil)
			if err != tc.wantErr {
				t.Errorf("Upgrade() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestUpgradeWrites101(t *testing.T) {
	upgraded := make(chan net.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extra := http.Header{}
		extra.Add("Set-Cookie", "psui__sid=sess-test; Path=/")
		conn, _, err := Upgrade(w, r, extra)
		if err != nil {
			t.Errorf("Upgrade() error = %v", err)
			return
		}
		upgraded <- conn
	}))
	defer srv.Close()

	sock, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sock.Close()

	req := strings.Join([]string{
		"GET /_psui/ws HTTP/1.1",
		"Host: " + srv.Listener.Addr().String(),
		"Upgrade: websocket",
		"Connection: Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version: 13",
		"", "",
	}, "\r\n")
	if _, err := sock.Write([]byte(req)); err != nil {
		t.Fatalf("write request: %v", err)
	}

	sock.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(sock), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", resp.StatusCode)
	}
	if got := resp.Header.Get("Sec-WebSocket-Accept"); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("Sec-WebSocket-Accept = %q, want RFC vector", got)
	}
	if got := resp.Header.Get("Upgrade"); !strings.EqualFold(got, "websocket") {
		t.Errorf("Upgrade = %q, want websocket", got)
	}
	if got := resp.Header.Get("Connection"); !strings.EqualFold(got, "Upgrade") {
		t.Errorf("Connection = %q, want Upgrade", got)
	}
	if got := resp.Header.Get("Set-Cookie"); !strings.Contains(got, "psui__sid=sess-test") {
		t.Errorf("Set-Cookie = %q, want session cookie passed through", got)
	}

	select {
	case conn := <-upgraded:
		conn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not report upgraded connection")
	}
}

func TestIsUpgrade(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if IsUpgrade(r) {
		t.Error("IsUpgrade() = true for plain request")
	}
	r.Header.Set("Upgrade", "WebSocket")
	if !IsUpgrade(r) {
		t.Error("IsUpgrade() = false, header matching should be case-insensitive")
	}
}
