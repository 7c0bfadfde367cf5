package audio

import "testing"

func newTestSource(channels int) *paSource {
	return &paSource{
		frames:     make(chan []float32, framesChanDepth),
		frameSize:  4,
		channels:   channels,
		frameScrap: make([]float32, 4*channels),
	}
}

func TestCallbackDownmixesStereoToMono(t *testing.T) {
	s := newTestSource(2)
	// frames of (L, R): (1,1) (2,0) (0,2) (-1,-1) -> mono avg: 1,1,1,-1
	in := []float32{1, 1, 2, 0, 0, 2, -1, -1}
	s.callback(in)

	out := make([]float32, 4)
	if err := s.ReadFrame(out); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	want := []float32{1, 1, 1, -1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestCallbackMonoPassthrough(t *testing.T) {
	s := newTestSource(1)
	in := []float32{0.1, 0.2, 0.3, 0.4}
	s.callback(in)

	out := make([]float32, 4)
	if err := s.ReadFrame(out); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestFlushDropsBufferedFrame(t *testing.T) {
	s := newTestSource(1)
	s.callback([]float32{1, 1, 1, 1})
	s.Flush()

	select {
	case <-s.frames:
		t.Fatal("expected no buffered frame after Flush")
	default:
	}
}

func TestCallbackDropsOldestWhenChannelFull(t *testing.T) {
	s := newTestSource(1)
	for i := 0; i < framesChanDepth+2; i++ {
		s.callback([]float32{float32(i), float32(i), float32(i), float32(i)})
	}
	if len(s.frames) > framesChanDepth {
		t.Fatalf("channel depth exceeded: %d", len(s.frames))
	}

	// framesChanDepth+2 frames were pushed, so frames 0 and 1 were dropped.
	out := make([]float32, 4)
	if err := s.ReadFrame(out); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if want := float32(2); out[0] != want {
		t.Fatalf("oldest remaining frame = %v, want %v", out[0], want)
	}
}
