package websocket_test

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/websocket"
)

// hijackableRecorder adapts httptest.NewRecorder with Hijack support
// backed by a net.Pipe, since the standard ResponseRecorder doesn't
// implement http.Hijacker.
type hijackableRecorder struct {
	*httptest.ResponseRecorder
	serverConn net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	br := bufio.NewReader(h.serverConn)
	bw := bufio.NewWriter(h.serverConn)
	return h.serverConn, bufio.NewReadWriter(br, bw), nil
}

func newHandshakeRequest(clientConn net.Conn) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Sec-WebSocket-Version", "13")
	return req
}

func TestFrame_WriteAndReadTextMessage(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder(), serverConn: serverConn}
	req := newHandshakeRequest(clientConn)

	serverDone := make(chan *websocket.Conn, 1)
	go func() {
		c, err := websocket.Accept(rec, req, websocket.UpgradeOptions{})
		require.NoError(t, err)
		serverDone <- c
	}()

	// Drain the client's view of the handshake response, then keep
	// reading to absorb the eventual close frame so the server's
	// deferred Close() write doesn't block forever on net.Pipe's
	// synchronous semantics.
	go func() {
		br := bufio.NewReader(clientConn)
		http.ReadResponse(br, req)
		io.Copy(io.Discard, br)
	}()

	server := <-serverDone
	defer server.Close(1000, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		typ, data, err := server.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)
		assert.Equal(t, "hello", string(data))
	}()

	clientWriteFrame(t, clientConn, 0x1, []byte("hello"), true)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server never read the message")
	}
}

// clientWriteFrame writes one unfragmented, masked frame directly
// (bypassing the Conn abstraction) to exercise server-side reads.
func clientWriteFrame(t *testing.T, w net.Conn, opcode byte, payload []byte, masked bool) {
	t.Helper()
	first := byte(0x80) | opcode
	var header []byte
	length := len(payload)
	if length < 126 {
		header = []byte{first, byte(length)}
	} else {
		t.Fatalf("test helper only supports small frames")
	}
	if masked {
		header[1] |= 0x80
	}
	buf := append([]byte(nil), header...)
	if masked {
		key := [4]byte{1, 2, 3, 4}
		buf = append(buf, key[:]...)
		masked := append([]byte(nil), payload...)
		for i := range masked {
			masked[i] ^= key[i%4]
		}
		buf = append(buf, masked...)
	} else {
		buf = append(buf, payload...)
	}
	go func() {
		w.Write(buf)
	}()
}

func TestIsUpgradeRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.False(t, websocket.IsUpgradeRequest(req))

	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Key", "x")
	req.Header.Set("Sec-WebSocket-Version", "13")
	assert.True(t, websocket.IsUpgradeRequest(req))
}

func TestCloseError_Message(t *testing.T) {
	err := &websocket.CloseError{Code: 1000, Reason: "bye"}
	assert.Contains(t, err.Error(), "1000")
	assert.Contains(t, err.Error(), "bye")
}
