//go:build windows

package audio

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// loopbackSuffix is the suffix PortAudio's WASAPI host API appends to
// render-endpoint device names when they are opened in shared loopback
// mode. Mirrors the WASAPI loopback behavior in
// original_source/native/windows/main.cpp, which has no per-source
// selection — only the default render endpoint is ever captured.
const loopbackSuffix = "[Loopback]"

const defaultSourceName = "default"

const platformSupportsSourceSelection = false

func isLoopbackDevice(d *portaudio.DeviceInfo) bool {
	return strings.HasSuffix(d.Name, loopbackSuffix)
}

// enumeratePlatform returns the single synthetic entry spec.md §3 and §9
// prescribe for platforms with no per-source selection.
func enumeratePlatform() ([]SourceDescriptor, error) {
	return []SourceDescriptor{
		{Name: defaultSourceName, Description: "Default Audio Output"},
	}, nil
}

// openPlatform ignores sourceName — SET_SOURCE is acknowledged without
// effect on this platform, per spec.md §9's design note. It opens the
// loopback device of the default output device, or the first loopback
// device found if none matches it.
func openPlatform(sourceName string) (Source, error) {
	devs, err := devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	if def, err := portaudio.DefaultOutputDevice(); err == nil {
		for _, d := range devs {
			if isLoopbackDevice(d) && strings.Contains(d.Name, def.Name) {
				return openPaSource(d, captureChannels(d))
			}
		}
	}

	for _, d := range devs {
		if isLoopbackDevice(d) {
			return openPaSource(d, captureChannels(d))
		}
	}

	return nil, fmt.Errorf("%w: no WASAPI loopback device available", ErrSourceUnavailable)
}

func captureChannels(d *portaudio.DeviceInfo) int {
	if d.MaxInputChannels >= 2 {
		return 2
	}
	return 1
}
