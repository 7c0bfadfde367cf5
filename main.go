package main

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"viscapture/cmd"
	"viscapture/internal/audio"
	"viscapture/internal/build"
	"viscapture/internal/log"
	"viscapture/internal/orchestrator"
	"viscapture/internal/tui"
)

// main is the entry point for vis-capture. The program flow is divided
// into three phases, the same shape as the teacher's main.go:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Initialize PortAudio
//   - Parse command line arguments
//   - Execute one-off commands if requested (the `list` subcommand)
//
// 2. Concurrent Phase (Hot Path):
//   - Build the orchestrator (opens the audio source, binds the server)
//   - Run the main loop until a signal or fatal error
//
// 3. Shutdown Phase (Cold Path):
//   - Orchestrator.Run's own deferred cleanup handles server/source
//     teardown in listener-then-audio order; PortAudio terminates last
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatalf("build: %v", err)
	}

	// Limit OS threads to optimize for real-time audio processing: one
	// thread dedicated to the audio engine (time-critical), one for
	// WebSocket I/O and command handling.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		log.Fatalf("audio: initialize: %v", err)
	}
	defer audio.Terminate()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("args: %v", err)
	}
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	if cfg.Command == "list" {
		if err := tui.StartSourceListUI(); err != nil {
			log.Fatalf("list: %v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	o, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-done
		o.Stop()
	}()

	if err := o.Run(); err != nil {
		log.Fatalf("orchestrator: run: %v", err)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Server and audio source teardown already happened inside
	// Orchestrator.Run's defer, client-socket / listener / audio order,
	// per spec.md §5.
}
