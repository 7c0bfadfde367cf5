// Package wsserver implements Component C: a single-subscriber WebSocket
// server on loopback. Built on github.com/gorilla/websocket + net/http (the
// teacher's WebSocket library, used in internal/fft/socket.go and
// internal/transport/websocket.go) rather than a hand-rolled RFC 6455 frame
// codec — spec.md §9's design note explicitly permits this: "a mature
// library is acceptable if it does not add runtime dependencies beyond the
// system audio layer."
//
// The "non-blocking poll()" architecture of the original C reference is
// translated to Go's idiomatic channel/goroutine shape per spec.md §9: a
// read-pump goroutine per connection delivers inbound text frames onto a
// channel; the orchestrator drains it with a non-blocking select each main
// loop iteration.
package wsserver

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"viscapture/internal/config"
	"viscapture/internal/log"

	"github.com/gorilla/websocket"
)

// ErrBindFailed wraps listener bind errors — fatal at startup per spec.md §7.
var ErrBindFailed = errors.New("wsserver: bind failed")

// Server accepts at most one WebSocket subscriber at a time, per spec.md
// §4.C's session semantics.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex // serializes writes to conn, gorilla requires one writer at a time

	inbound chan string
}

// New constructs a Server; call Start to bind and begin serving.
func New() *Server {
	s := &Server{
		inbound: make(chan string, 16),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	return s
}

// Start binds a TCP listener to 127.0.0.1:port and begins serving HTTP
// Upgrade requests in the background. Bind failure is reported to the
// caller, who per spec.md §7 treats it as fatal.
func (s *Server) Start(port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Join(ErrBindFailed, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("wsserver: Serve: %v", err)
		}
	}()

	log.Infof("wsserver: listening on %s", addr)
	return nil
}

// handleUpgrade performs the RFC 6455 upgrade. If a subscriber is already
// connected, the request is rejected — spec.md §4.C: "exactly one
// subscriber at a time."
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.HasClient() {
		http.Error(w, "a subscriber is already connected", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("wsserver: handshake failed: %v", err)
		return
	}
	conn.SetReadLimit(config.MaxInboundPayload)

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readPump(conn)
}

// readPump is the per-connection goroutine grounded on internal/fft/socket.go's
// handleWebSocket read-loop. Any read error (including an oversized payload
// tripping SetReadLimit, or a received close frame) drops the subscriber and
// returns the server to accepting.
func (s *Server) readPump(conn *websocket.Conn) {
	defer s.dropClient(conn)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue // pong/binary frames from a client are silently consumed
		}

		select {
		case s.inbound <- string(data):
		default:
			log.Warnf("wsserver: inbound command queue full, dropping command")
		}
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

// HasClient reports whether a subscriber is currently connected.
func (s *Server) HasClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Inbound returns the channel of decoded command text frames. The
// orchestrator drains it with a non-blocking select each main loop
// iteration, never blocking on it.
func (s *Server) Inbound() <-chan string {
	return s.inbound
}

// SendBinary transmits one complete WebSocket binary frame. A no-op (not an
// error) when no subscriber is connected.
func (s *Server) SendBinary(data []byte) error {
	return s.send(websocket.BinaryMessage, data)
}

// SendText transmits one complete WebSocket text frame (a JSON ack).
func (s *Server) SendText(data []byte) error {
	return s.send(websocket.TextMessage, data)
}

func (s *Server) send(messageType int, data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, data); err != nil {
		s.dropClient(conn)
		return err
	}
	return nil
}

// Stop closes the listener and any connected subscriber.
func (s *Server) Stop() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
