// SPDX-License-Identifier: MIT
//
// Package telemetry implements the supplemental UDP diagnostics sidecar
// described in SPEC_FULL.md §10. It is strictly additive to the primary
// WebSocket channel: gated by config, off by default, and never blocks or
// fails the main loop.
//
// Grounded on the teacher's internal/transport/udp/{publisher,sender}.go
// (ticker + goroutine lifecycle, sync.Once/WaitGroup shutdown, BigEndian
// packet framing) and internal/analysis/{band_energy,beat}.go (six named
// energy bands, RMS kick detector) — adapted here to read from
// internal/dsp's float32 magnitude accessor instead of re-running the FFT,
// and to treat the raw audio frame as float32 rather than int32.
package telemetry

import (
	"bytes"
	"encoding/binary"
	"math"
	"net"
	"sync"
	"time"

	"viscapture/internal/log"
)

// MagnitudeSource is the read-only view of the processor telemetry needs —
// satisfied by *dsp.Processor without importing the full dsp API surface.
type MagnitudeSource interface {
	Magnitudes() []float32
	FrequencyForBin(k int) float64
}

// band mirrors FrequencyBand in the teacher's internal/analysis/band_energy.go.
type band struct {
	name   string
	lowHz  float64
	highHz float64
}

func defaultBands() []band {
	return []band{
		{name: "sub", lowHz: 20, highHz: 60},
		{name: "bass", lowHz: 60, highHz: 250},
		{name: "lowMid", lowHz: 250, highHz: 500},
		{name: "mid", lowHz: 500, highHz: 2000},
		{name: "highMid", lowHz: 2000, highHz: 4000},
		{name: "treble", lowHz: 4000, highHz: 22050},
	}
}

const (
	eventNone = 0
	eventKick = 1
)

// Sidecar periodically samples a MagnitudeSource and the raw audio frame,
// computes band energies and a kick/transient flag, and fires one UDP
// packet per tick at a configured target address.
type Sidecar struct {
	conn   *net.UDPConn
	source MagnitudeSource

	bands []band

	kickThreshold      float64
	kickMinEnergyRatio float64
	lastRMS            float64

	interval time.Duration
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	lastFrame []float32

	sequenceNum uint32
	packetBuf   *bytes.Buffer
}

// New constructs a Sidecar targeting targetAddress, sampling source at
// interval. It does not start sending until Start is called.
func New(targetAddress string, interval time.Duration, source MagnitudeSource) (*Sidecar, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 33 * time.Millisecond
	}

	return &Sidecar{
		conn:               conn,
		source:             source,
		bands:              defaultBands(),
		kickThreshold:      0.08,
		kickMinEnergyRatio: 1.6,
		interval:           interval,
		packetBuf:          new(bytes.Buffer),
	}, nil
}

// ObserveFrame records the most recent raw audio frame for the kick
// detector. Called by the orchestrator once per Step, independent of the
// sidecar's own send interval.
func (s *Sidecar) ObserveFrame(frame []float32) {
	s.mu.Lock()
	if cap(s.lastFrame) < len(frame) {
		s.lastFrame = make([]float32, len(frame))
	}
	s.lastFrame = s.lastFrame[:len(frame)]
	copy(s.lastFrame, frame)
	s.mu.Unlock()
}

// Start begins the periodic send goroutine. Safe to call once; a second
// call is a no-op.
func (s *Sidecar) Start() {
	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.interval)
	s.doneChan = make(chan struct{})
	s.stopOnce = sync.Once{}

	ticker := s.ticker
	done := s.doneChan

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-done:
				return
			}
		}
	}()
}

// Stop halts the send goroutine and closes the UDP connection. Idempotent.
func (s *Sidecar) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		if s.doneChan != nil {
			close(s.doneChan)
		}
	})
	s.wg.Wait()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Sidecar) tick() {
	energies := s.computeBandEnergies()
	event := s.computeKickEvent()
	if err := s.sendPacket(energies, event); err != nil {
		// Telemetry send errors are logged and dropped, never fatal — they
		// must never backpressure into the main loop.
		log.Debugf("telemetry: send failed: %v", err)
	}
}

// computeBandEnergies reuses the magnitude spectrum the bar processor
// already computed for the current frame — no duplicate FFT work.
func (s *Sidecar) computeBandEnergies() []float64 {
	mags := s.source.Magnitudes()
	sums := make([]float64, len(s.bands))
	counts := make([]int, len(s.bands))

	for k, m := range mags {
		freq := s.source.FrequencyForBin(k)
		for i, b := range s.bands {
			if freq >= b.lowHz && freq < b.highHz {
				v := float64(m)
				sums[i] += v * v
				counts[i]++
				break
			}
		}
	}

	out := make([]float64, len(s.bands))
	for i := range s.bands {
		if counts[i] > 0 {
			out[i] = sums[i] / float64(counts[i])
		}
	}
	return out
}

// computeKickEvent is a simplified RMS energy-ratio kick detector,
// grounded on the teacher's internal/analysis/beat.go BeatDetector.
func (s *Sidecar) computeKickEvent() uint8 {
	s.mu.Lock()
	frame := s.lastFrame
	s.mu.Unlock()

	if len(frame) == 0 {
		return eventNone
	}

	var sumSquare float64
	for _, v := range frame {
		fv := float64(v)
		sumSquare += fv * fv
	}
	rms := math.Sqrt(sumSquare / float64(len(frame)))

	event := uint8(eventNone)
	if rms > s.kickThreshold && (s.lastRMS == 0 || rms/s.lastRMS > s.kickMinEnergyRatio) {
		event = eventKick
	}
	s.lastRMS = rms
	return event
}

// sendPacket packs sequence number, timestamp, six band energies, and the
// event flag into a BigEndian binary packet, the same framing style as the
// teacher's internal/transport/udp/publisher.go doc comment, extended with
// a trailing event byte this domain needs and the teacher's didn't.
func (s *Sidecar) sendPacket(energies []float64, event uint8) error {
	s.sequenceNum++
	s.packetBuf.Reset()

	if err := binary.Write(s.packetBuf, binary.BigEndian, s.sequenceNum); err != nil {
		return err
	}
	if err := binary.Write(s.packetBuf, binary.BigEndian, time.Now().UnixNano()); err != nil {
		return err
	}
	if err := binary.Write(s.packetBuf, binary.BigEndian, uint16(len(energies))); err != nil {
		return err
	}
	for _, e := range energies {
		if err := binary.Write(s.packetBuf, binary.BigEndian, float32(e)); err != nil {
			return err
		}
	}
	if err := binary.Write(s.packetBuf, binary.BigEndian, event); err != nil {
		return err
	}

	_, err := s.conn.Write(s.packetBuf.Bytes())
	return err
}

