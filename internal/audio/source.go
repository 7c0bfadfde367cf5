// SPDX-License-Identifier: MIT
//
// Package audio implements Component A: it opens the platform loopback/
// monitor stream as mono float32 at 44.1 kHz and delivers fixed-size frames.
//
// The public surface (Source, SourceDescriptor, Open, Enumerate) is platform
// independent; source_linux.go, source_windows.go and source_other.go each
// supply openPlatform/enumeratePlatform for their build tag, grounded on
// original_source/native/linux/main.cpp and original_source/native/windows/
// main.cpp respectively. PortAudio (github.com/gordonklaus/portaudio) is the
// teacher's capture library and is shared by all three.
package audio

import (
	"errors"

	"github.com/gordonklaus/portaudio"
)

// ErrSourceUnavailable is returned by Open when the requested source cannot
// be opened. Callers may revert to the previously open source.
var ErrSourceUnavailable = errors.New("audio: source unavailable")

// ErrSourceLost is returned by ReadFrame when the underlying stream fails.
// Per spec.md §4.A this is fatal to the caller's main loop.
var ErrSourceLost = errors.New("audio: source lost")

// SourceDescriptor identifies one selectable capture endpoint.
type SourceDescriptor struct {
	Name        string
	Description string
}

// DefaultMonitorSentinel selects "whatever the system plays through by
// default" on every platform.
const DefaultMonitorSentinel = "@DEFAULT_MONITOR@"

// Source delivers an infinite stream of fixed-length mono float32 frames.
type Source interface {
	// ReadFrame blocks until exactly len(out) samples have been written to
	// out, or returns ErrSourceLost.
	ReadFrame(out []float32) error
	// Flush discards any buffered audio so the next ReadFrame delivers
	// fresh data.
	Flush()
	// Close releases the underlying stream.
	Close() error
}

// Initialize sets up the PortAudio subsystem. Must be called once before
// Open or Enumerate, paired with a deferred Terminate.
func Initialize() error {
	return portaudio.Initialize()
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	return portaudio.Terminate()
}

// Open acquires a capture stream for sourceName (or DefaultMonitorSentinel).
// On failure it returns ErrSourceUnavailable, wrapped with the underlying
// cause.
func Open(sourceName string) (Source, error) {
	return openPlatform(sourceName)
}

// Enumerate lists selectable capture endpoints. Platforms without selection
// (Windows WASAPI loopback, and the generic fallback) return one synthetic
// entry, per spec.md §3.
func Enumerate() ([]SourceDescriptor, error) {
	return enumeratePlatform()
}

// SupportsSourceSelection reports whether this platform can open distinct
// sources at all. Windows WASAPI loopback and the generic fallback only
// ever capture the single default endpoint, so per spec.md §9 a SET_SOURCE
// on those platforms is acknowledged without effect rather than reopening
// the stream.
func SupportsSourceSelection() bool {
	return platformSupportsSourceSelection
}
