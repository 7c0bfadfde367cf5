package audio

import (
	"fmt"

	"viscapture/internal/config"
	"viscapture/internal/log"

	"github.com/gordonklaus/portaudio"
)

// paSource wraps a PortAudio input stream. PortAudio's native API is
// callback-driven; ReadFrame adapts that push model to the blocking pull
// model spec.md §4.A requires by having the stream callback push completed
// frames onto frames, a small buffered channel, and receiving from it here —
// the idiomatic Go translation of "blocks until exactly frame_size samples
// are written", grounded on the teacher's processInputStream callback in
// internal/audio/engine.go.
type paSource struct {
	stream     *portaudio.Stream
	frames     chan []float32
	frameSize  int
	channels   int
	frameScrap []float32 // sized frameSize*channels; callback does not use it, each mono frame is a fresh slice handed to ReadFrame
}

// framesChanDepth bounds how far the callback can run ahead of ReadFrame
// before frames are dropped. One frame of slack absorbs scheduling jitter
// without letting capture silently fall behind the real-time clock.
const framesChanDepth = 2

func openPaSource(device *portaudio.DeviceInfo, channels int) (*paSource, error) {
	latency := device.DefaultLowInputLatency

	s := &paSource{
		frames:     make(chan []float32, framesChanDepth),
		frameSize:  config.FrameSize,
		channels:   channels,
		frameScrap: make([]float32, config.FrameSize*channels),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   device,
			Latency:  latency,
		},
		SampleRate:      config.SampleRate,
		FramesPerBuffer: config.FrameSize,
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	return s, nil
}

// callback runs on PortAudio's real-time thread. It downmixes to mono by
// channel average (spec.md §4.A format conversion) and hands a copy of the
// frame to ReadFrame via the buffered channel. A full channel drops the
// oldest pending frame rather than blocking the audio thread.
func (s *paSource) callback(in []float32) {
	mono := make([]float32, s.frameSize)
	if s.channels <= 1 {
		copy(mono, in)
	} else {
		for i := 0; i < s.frameSize; i++ {
			var sum float32
			for c := 0; c < s.channels; c++ {
				idx := i*s.channels + c
				if idx < len(in) {
					sum += in[idx]
				}
			}
			mono[i] = sum / float32(s.channels)
		}
	}

	select {
	case s.frames <- mono:
	default:
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- mono:
		default:
		}
	}
}

func (s *paSource) ReadFrame(out []float32) error {
	frame, ok := <-s.frames
	if !ok {
		return ErrSourceLost
	}
	n := copy(out, frame)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return nil
}

// Flush discards any frame already queued so the next ReadFrame blocks for
// genuinely fresh audio, per spec.md §4.A.
func (s *paSource) Flush() {
	for {
		select {
		case <-s.frames:
		default:
			return
		}
	}
}

func (s *paSource) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		log.Warnf("audio: error stopping stream: %v", err)
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

// devices returns all PortAudio devices, grounded on the teacher's
// internal/audio/device.go paDevices helper.
func devices() ([]*portaudio.DeviceInfo, error) {
	return portaudio.Devices()
}
