package telemetry

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

type fakeSource struct {
	mags  []float32
	freqs []float64
}

func (f *fakeSource) Magnitudes() []float32    { return f.mags }
func (f *fakeSource) FrequencyForBin(k int) float64 { return f.freqs[k] }

func newFakeSource(n int, sampleRate, fftSize int) *fakeSource {
	mags := make([]float32, n)
	freqs := make([]float64, n)
	for k := 0; k < n; k++ {
		freqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}
	return &fakeSource{mags: mags, freqs: freqs}
}

func listenUDP(t *testing.T) (*net.UDPConn, string) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().String()
}

func TestComputeBandEnergiesBucketsByFrequency(t *testing.T) {
	src := newFakeSource(2048, 44100, 4096)
	// Put a strong magnitude at a bin that falls in the "bass" band (60-250Hz).
	bassBin := 0
	for k, f := range src.freqs {
		if f >= 100 && f < 200 {
			bassBin = k
			break
		}
	}
	src.mags[bassBin] = 10

	sc, err := New("127.0.0.1:9", time.Second, src)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Stop()

	energies := sc.computeBandEnergies()
	if len(energies) != 6 {
		t.Fatalf("expected 6 bands, got %d", len(energies))
	}
	if energies[1] <= energies[0] || energies[1] <= energies[2] {
		t.Fatalf("expected bass band to dominate, got %+v", energies)
	}
}

func TestComputeKickEventFiresOnSuddenLoudFrame(t *testing.T) {
	src := newFakeSource(8, 44100, 4096)
	sc, err := New("127.0.0.1:9", time.Second, src)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Stop()

	quiet := make([]float32, 512)
	for i := range quiet {
		quiet[i] = 0.01
	}
	sc.ObserveFrame(quiet)
	if event := sc.computeKickEvent(); event != eventNone {
		t.Fatalf("expected no event on quiet frame, got %d", event)
	}

	loud := make([]float32, 512)
	for i := range loud {
		loud[i] = 0.5
	}
	sc.ObserveFrame(loud)
	if event := sc.computeKickEvent(); event != eventKick {
		t.Fatalf("expected kick event on sudden loud frame, got %d", event)
	}
}

func TestComputeKickEventSilentFrame(t *testing.T) {
	src := newFakeSource(8, 44100, 4096)
	sc, err := New("127.0.0.1:9", time.Second, src)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Stop()

	if event := sc.computeKickEvent(); event != eventNone {
		t.Fatalf("expected no event with no observed frame, got %d", event)
	}
}

func TestSendPacketWireFormat(t *testing.T) {
	listener, addr := listenUDP(t)

	src := newFakeSource(8, 44100, 4096)
	sc, err := New(addr, time.Second, src)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Stop()

	if err := sc.sendPacket([]float64{1, 2, 3, 4, 5, 6}, eventKick); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 256)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}
	buf = buf[:n]

	seq := binary.BigEndian.Uint32(buf[0:4])
	if seq != 1 {
		t.Fatalf("expected sequence 1, got %d", seq)
	}
	bandCount := binary.BigEndian.Uint16(buf[12:14])
	if bandCount != 6 {
		t.Fatalf("expected 6 bands in packet, got %d", bandCount)
	}
	wantLen := 4 + 8 + 2 + 6*4 + 1
	if len(buf) != wantLen {
		t.Fatalf("packet length = %d, want %d", len(buf), wantLen)
	}
	event := buf[len(buf)-1]
	if event != eventKick {
		t.Fatalf("expected trailing event byte %d, got %d", eventKick, event)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	_, addr := listenUDP(t)
	src := newFakeSource(8, 44100, 4096)
	sc, err := New(addr, 5*time.Millisecond, src)
	if err != nil {
		t.Fatal(err)
	}

	sc.Start()
	sc.Start() // second call must be a no-op, not a panic
	time.Sleep(20 * time.Millisecond)
	sc.Stop()
	sc.Stop() // idempotent
}

func TestNewRejectsUnresolvableAddress(t *testing.T) {
	src := newFakeSource(8, 44100, 4096)
	if _, err := New("not a valid address::", time.Second, src); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
