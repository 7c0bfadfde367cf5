// Package orchestrator implements Component E: the main loop that drives
// the audio source, the processor, the WebSocket server and the control
// plane together, plus process lifecycle and signal handling.
//
// Grounded on the teacher's main.go three-phase (Startup/Concurrent/
// Shutdown) structure and its os/signal pattern, generalized from "start
// one engine and block on a signal channel" into spec.md §4.E's main loop:
// poll, apply pending source change, idle/flush/reset, fps-paced binary
// emission.
package orchestrator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"viscapture/internal/audio"
	"viscapture/internal/config"
	"viscapture/internal/control"
	"viscapture/internal/dsp"
	"viscapture/internal/log"
	"viscapture/internal/telemetry"
	"viscapture/internal/wsserver"
)

// ErrFatalSourceLost is returned by Run when the audio source fails beyond
// recovery — either a ReadFrame error, or a SET_SOURCE revert that itself
// fails to reopen the previous source (SPEC_FULL.md §11(a): "there is no
// source left to read from").
var ErrFatalSourceLost = errors.New("orchestrator: audio source lost, no source left to read from")

const idlePollInterval = 50 * time.Millisecond

// pendingSource is the mutex-guarded handoff spec.md §5 describes: a
// SET_SOURCE command arriving on the control plane sets requested under
// lock; the main loop applies it between frames.
type pendingSource struct {
	mu        sync.Mutex
	requested bool
	name      string
}

func (p *pendingSource) set(name string) {
	p.mu.Lock()
	p.requested = true
	p.name = name
	p.mu.Unlock()
}

func (p *pendingSource) take() (name string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.requested {
		return "", false
	}
	p.requested = false
	return p.name, true
}

// Orchestrator owns the audio source, the processor, the WebSocket server,
// and (optionally) the telemetry sidecar, and runs spec.md §4.E's main
// loop until told to stop.
type Orchestrator struct {
	server *wsserver.Server

	source     audio.Source
	sourceName string

	processor *dsp.Processor

	fps      int
	barCount int
	freqMax  int

	idle     bool
	lastSend time.Time
	frame    []float32

	pending pendingSource

	sidecar *telemetry.Sidecar

	stop chan struct{}
}

// New constructs an Orchestrator using cfg's startup defaults. It opens the
// audio source and binds the WebSocket server; both failures are reported
// to the caller for spec.md §7's fatal-at-startup treatment.
func New(cfg *config.Config) (*Orchestrator, error) {
	source, err := audio.Open(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: initial source open: %w", err)
	}

	server := wsserver.New()
	if err := server.Start(cfg.Port); err != nil {
		source.Close()
		return nil, fmt.Errorf("orchestrator: server start: %w", err)
	}

	o := &Orchestrator{
		server:     server,
		source:     source,
		sourceName: cfg.Source,
		processor:  dsp.NewProcessor(cfg.BarCount, cfg.FreqMax),
		fps:        cfg.FPS,
		barCount:   cfg.BarCount,
		freqMax:    cfg.FreqMax,
		idle:       true,
		frame:      make([]float32, config.FrameSize),
		stop:       make(chan struct{}),
	}

	if cfg.Telemetry.UDPEnabled {
		interval, err := time.ParseDuration(cfg.Telemetry.UDPSendInterval)
		if err != nil {
			interval = 0 // Sidecar.New substitutes its own default
		}
		sidecar, err := telemetry.New(cfg.Telemetry.UDPTargetAddress, interval, o.processor)
		if err != nil {
			log.Warnf("orchestrator: telemetry disabled, setup failed: %v", err)
		} else {
			o.sidecar = sidecar
			o.sidecar.Start()
		}
	}

	return o, nil
}

// Stop signals Run to exit at the next loop iteration. Safe to call from a
// signal handler.
func (o *Orchestrator) Stop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

// Run executes spec.md §4.E's main loop until Stop is called or a fatal
// error occurs. It always closes the server and the audio source before
// returning, per the destructor order spec.md §5 describes: client socket
// first (inside server.Stop), then listener, then audio.
func (o *Orchestrator) Run() error {
	defer func() {
		if o.sidecar != nil {
			o.sidecar.Stop()
		}
		o.server.Stop()
		o.source.Close()
	}()

	for {
		select {
		case <-o.stop:
			return nil
		default:
		}

		o.drainCommands()

		if err := o.applyPendingSource(); err != nil {
			return err
		}

		if !o.server.HasClient() {
			o.idle = true
			time.Sleep(idlePollInterval)
			continue
		}

		if o.idle {
			o.source.Flush()
			o.processor.Reset()
			o.idle = false
			o.lastSend = time.Now()
		}

		if err := o.source.ReadFrame(o.frame); err != nil {
			return fmt.Errorf("%w: %v", ErrFatalSourceLost, err)
		}

		bars := o.processor.Step(o.frame)
		if o.sidecar != nil {
			o.sidecar.ObserveFrame(o.frame)
		}

		now := time.Now()
		if now.Sub(o.lastSend) >= time.Second/time.Duration(o.fps) {
			if err := o.server.SendBinary(encodeBars(bars)); err != nil {
				log.Warnf("orchestrator: send binary: %v", err)
			}
			o.lastSend = now
		}
	}
}

// drainCommands processes every inbound command currently queued, without
// blocking — spec.md §4.C: "server.poll() never blocks."
func (o *Orchestrator) drainCommands() {
	for {
		select {
		case line := <-o.server.Inbound():
			o.handleCommand(line)
		default:
			return
		}
	}
}

func (o *Orchestrator) handleCommand(line string) {
	cmd, ok := control.Parse(line)
	if !ok {
		return // spec.md §7 BadCommand policy: silent drop
	}

	switch cmd.Kind {
	case control.KindGetSources:
		sources, err := audio.Enumerate()
		if err != nil {
			log.Warnf("orchestrator: enumerate sources: %v", err)
			return
		}
		o.sendAck(control.SourcesAck(sources))

	case control.KindSetSource:
		o.pending.set(cmd.Source)

	case control.KindSetFPS:
		o.fps = cmd.FPS
		o.sendAck(control.FPSChangedAck(cmd.FPS))

	case control.KindSetFreqMax:
		o.freqMax = cmd.FreqMax
		o.processor.Reconfigure(o.barCount, o.freqMax)
		o.sendAck(control.FreqMaxChangedAck(cmd.FreqMax))

	case control.KindSetBarCount:
		o.barCount = cmd.BarCount
		o.processor.Reconfigure(o.barCount, o.freqMax)
		o.sendAck(control.BarCountChangedAck(cmd.BarCount))
	}
}

// applyPendingSource implements spec.md §4.D's revert-on-failure contract,
// extended per SPEC_FULL.md §11(a): the old source is closed before the
// new one is opened, so a failed revert leaves nothing to read from and is
// fatal.
func (o *Orchestrator) applyPendingSource() error {
	requestedName, ok := o.pending.take()
	if !ok {
		return nil
	}

	// Platforms with no per-source selection (Windows WASAPI loopback, the
	// generic fallback) have nothing to reopen — ack and leave the running
	// stream untouched, per spec.md §9.
	if !audio.SupportsSourceSelection() {
		o.sendAck(control.SourceChangedAck(requestedName))
		return nil
	}

	previousName := o.sourceName
	o.source.Close()

	newSource, err := audio.Open(requestedName)
	if err == nil {
		o.source = newSource
		o.sourceName = requestedName
		o.sendAck(control.SourceChangedAck(requestedName))
		return nil
	}

	log.Warnf("orchestrator: open %q failed: %v, reverting to %q", requestedName, err, previousName)
	reverted, revertErr := audio.Open(previousName)
	if revertErr != nil {
		return fmt.Errorf("%w: revert to %q also failed: %v", ErrFatalSourceLost, previousName, revertErr)
	}

	o.source = reverted
	o.sourceName = previousName
	o.sendAck(control.SourceErrorAck(err.Error()))
	return nil
}

func (o *Orchestrator) sendAck(payload []byte) {
	if err := o.server.SendText(payload); err != nil {
		log.Warnf("orchestrator: send ack: %v", err)
	}
}

// encodeBars packs a bar vector into little-endian IEEE-754 float32 bytes,
// per spec.md §6's downstream binary frame format.
func encodeBars(bars []float32) []byte {
	out := make([]byte, len(bars)*4)
	for i, b := range bars {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(b))
	}
	return out
}
