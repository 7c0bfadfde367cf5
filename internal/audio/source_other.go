//go:build !linux && !windows

package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Platforms with no monitor/loopback source-selection API exposed through
// PortAudio (e.g. darwin) fall back to the default input device and the
// same single synthetic descriptor Windows uses, per spec.md §9's design
// note ("Windows loopback has no per-source selection ... enumerate
// returns one synthetic entry and SET_SOURCE is acknowledged without
// effect") generalized to any platform in this tier.
const defaultSourceName = "default"

const platformSupportsSourceSelection = false

func enumeratePlatform() ([]SourceDescriptor, error) {
	return []SourceDescriptor{
		{Name: defaultSourceName, Description: "Default Audio Output"},
	}, nil
}

func openPlatform(sourceName string) (Source, error) {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return openPaSource(dev, captureChannels(dev))
}

func captureChannels(d *portaudio.DeviceInfo) int {
	if d.MaxInputChannels >= 2 {
		return 2
	}
	return 1
}
