package wsserver

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startTestServer(t *testing.T) (*Server, int) {
	t.Helper()
	s := New()
	// port 0 would be ideal but Start's contract takes a fixed port; probe
	// a free one the same way net/http/httptest does.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if err := s.Start(port); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, port
}

// TestHandshakeAcceptVector reproduces spec.md §8 scenario 1 exactly: a
// known Sec-WebSocket-Key must produce the documented Sec-WebSocket-Accept.
func TestHandshakeAcceptVector(t *testing.T) {
	_, port := startTestServer(t)

	conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	req := "GET / HTTP/1.1\r\n" +
		"Host: 127.0.0.1\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(statusLine, "101") {
		t.Fatalf("expected 101 status line, got %q", statusLine)
	}

	var acceptHeader string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "sec-websocket-accept:") {
			acceptHeader = strings.TrimSpace(line[len("sec-websocket-accept:"):])
		}
	}

	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if acceptHeader != want {
		t.Fatalf("Sec-WebSocket-Accept = %q, want %q", acceptHeader, want)
	}
}

func TestSingleSubscriberRejectsSecond(t *testing.T) {
	_, port := startTestServer(t)
	url := "ws://127.0.0.1:" + strconv.Itoa(port) + "/"

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected second subscriber to be rejected")
	}
	if resp != nil && resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestInboundCommandDelivery(t *testing.T) {
	s, port := startTestServer(t)
	url := "ws://127.0.0.1:" + strconv.Itoa(port) + "/"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("GET_SOURCES")); err != nil {
		t.Fatal(err)
	}

	select {
	case cmd := <-s.Inbound():
		if cmd != "GET_SOURCES" {
			t.Fatalf("got %q", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound command")
	}
}

func TestSendBinaryRoundTrip(t *testing.T) {
	s, port := startTestServer(t)
	url := "ws://127.0.0.1:" + strconv.Itoa(port) + "/"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server's readPump a moment to register the connection.
	time.Sleep(50 * time.Millisecond)
	if !s.HasClient() {
		t.Fatal("expected HasClient true after connect")
	}

	payload := []byte{1, 2, 3, 4}
	if err := s.SendBinary(payload); err != nil {
		t.Fatalf("SendBinary: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if mt != websocket.BinaryMessage || string(data) != string(payload) {
		t.Fatalf("got type=%d data=%v", mt, data)
	}
}
