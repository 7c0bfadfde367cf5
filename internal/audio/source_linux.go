//go:build linux

package audio

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// monitorSuffix is PulseAudio/ALSA's naming convention for "monitor of
// sink" capture endpoints — the loopback source for whatever the system is
// currently playing. Mirrors monitor_of_sink != PA_INVALID_INDEX filtering
// in original_source/native/linux/main.cpp, translated to PortAudio's
// already-enumerated device names rather than a raw pa_mainloop query.
const monitorSuffix = ".monitor"

const platformSupportsSourceSelection = true

func isMonitorDevice(d *portaudio.DeviceInfo) bool {
	return d.MaxInputChannels > 0 && strings.HasSuffix(d.Name, monitorSuffix)
}

func enumeratePlatform() ([]SourceDescriptor, error) {
	devs, err := devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var out []SourceDescriptor
	for _, d := range devs {
		if isMonitorDevice(d) {
			out = append(out, SourceDescriptor{
				Name:        d.Name,
				Description: hostAPIName(d),
			})
		}
	}
	return out, nil
}

func hostAPIName(d *portaudio.DeviceInfo) string {
	if d.HostApi != nil {
		return d.HostApi.Name
	}
	return "Loopback"
}

// openPlatform resolves sourceName to a monitor-source device and opens it.
// DefaultMonitorSentinel resolves to the host API's default input device if
// it is itself a monitor source, else the first enumerated monitor source.
func openPlatform(sourceName string) (Source, error) {
	devs, err := devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	if sourceName == DefaultMonitorSentinel || sourceName == "" {
		if def, err := portaudio.DefaultInputDevice(); err == nil && isMonitorDevice(def) {
			return openPaSource(def, captureChannels(def))
		}
		for _, d := range devs {
			if isMonitorDevice(d) {
				return openPaSource(d, captureChannels(d))
			}
		}
		return nil, fmt.Errorf("%w: no monitor source available", ErrSourceUnavailable)
	}

	for _, d := range devs {
		if d.Name == sourceName && isMonitorDevice(d) {
			return openPaSource(d, captureChannels(d))
		}
	}
	return nil, fmt.Errorf("%w: source %q not found", ErrSourceUnavailable, sourceName)
}

// captureChannels opens at most 2 input channels; paSource's callback
// downmixes to mono regardless, per spec.md §4.A format conversion.
func captureChannels(d *portaudio.DeviceInfo) int {
	if d.MaxInputChannels >= 2 {
		return 2
	}
	return 1
}
