package orchestrator

import (
	"encoding/binary"
	"math"
	"net"
	"strconv"
	"testing"
	"time"

	"viscapture/internal/config"
	"viscapture/internal/dsp"
	"viscapture/internal/wsserver"

	"github.com/gorilla/websocket"
)

// fakeSource is a minimal audio.Source for driving the main loop without
// PortAudio, mirroring internal/audio/portaudio_source_test.go's approach
// of bypassing the real capture stack.
type fakeSource struct {
	value     float32
	flushed   int
	closed    bool
	failAfter int
	reads     int
}

func (f *fakeSource) ReadFrame(out []float32) error {
	f.reads++
	if f.failAfter > 0 && f.reads >= f.failAfter {
		return errSourceLostForTest
	}
	for i := range out {
		out[i] = f.value
	}
	return nil
}

func (f *fakeSource) Flush()       { f.flushed++ }
func (f *fakeSource) Close() error { f.closed = true; return nil }

var errSourceLostForTest = &testError{"fake source lost"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func newTestOrchestrator(t *testing.T) (*Orchestrator, int, *fakeSource) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	server := wsserver.New()
	if err := server.Start(port); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { server.Stop() })

	src := &fakeSource{value: 0.02}

	o := &Orchestrator{
		server:     server,
		source:     src,
		sourceName: "test",
		processor:  dsp.NewProcessor(8, 12000),
		fps:        60,
		barCount:   8,
		freqMax:    12000,
		idle:       true,
		frame:      make([]float32, config.FrameSize),
		stop:       make(chan struct{}),
	}
	return o, port, src
}

func dialTestServer(t *testing.T, port int) *websocket.Conn {
	t.Helper()
	url := "ws://127.0.0.1:" + strconv.Itoa(port) + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestEncodeBarsLittleEndian(t *testing.T) {
	bars := []float32{0, 0.25, 1}
	got := encodeBars(bars)
	if len(got) != len(bars)*4 {
		t.Fatalf("length = %d, want %d", len(got), len(bars)*4)
	}
	for i, want := range bars {
		bits := binary.LittleEndian.Uint32(got[i*4:])
		gotVal := math.Float32frombits(bits)
		if gotVal != want {
			t.Fatalf("bar %d = %v, want %v", i, gotVal, want)
		}
	}
}

func TestHandleCommandScalarConfigAcks(t *testing.T) {
	o, port, _ := newTestOrchestrator(t)
	go o.Run()
	defer o.Stop()

	conn := dialTestServer(t, port)
	defer conn.Close()
	time.Sleep(30 * time.Millisecond)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("SET_FPS:24")); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	// Bar frames stream from the moment the subscriber connects, so skip
	// binary messages until the text ack arrives.
	var data []byte
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if mt == websocket.TextMessage {
			data = msg
			break
		}
	}
	if string(data) != `{"fpsChanged":24}` {
		t.Fatalf("got %q", data)
	}
}

func TestHandleCommandSetSourceQueuesPending(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	o.handleCommand(`SET_SOURCE:some device`)

	name, ok := o.pending.take()
	if !ok || name != "some device" {
		t.Fatalf("got %q, %v", name, ok)
	}
}

func TestHandleCommandUnknownIsSilentlyDropped(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	o.handleCommand("NOT_A_COMMAND")
	if _, ok := o.pending.take(); ok {
		t.Fatal("expected no pending change from an unknown command")
	}
}

func TestRunStreamsBinaryBarsToSubscriber(t *testing.T) {
	o, port, _ := newTestOrchestrator(t)
	go o.Run()
	defer o.Stop()

	conn := dialTestServer(t, port)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("expected binary message, got type %d", mt)
	}
	if len(data) != o.barCount*4 {
		t.Fatalf("payload length = %d, want %d", len(data), o.barCount*4)
	}
}

func TestRunFlushesSourceOnSubscriberConnect(t *testing.T) {
	o, port, src := newTestOrchestrator(t)
	go o.Run()
	defer o.Stop()

	conn := dialTestServer(t, port)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	if src.flushed == 0 {
		t.Fatal("expected Flush to be called on subscriber connect")
	}
}

func TestRunExitsOnStop(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	done := make(chan error, 1)
	go func() { done <- o.Run() }()

	o.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func TestRunReturnsFatalOnSourceReadError(t *testing.T) {
	o, port, src := newTestOrchestrator(t)
	src.failAfter = 1

	conn := dialTestServer(t, port)
	defer conn.Close()

	done := make(chan error, 1)
	go func() { done <- o.Run() }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a fatal error on source read failure")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not exit after source read error")
	}
}
