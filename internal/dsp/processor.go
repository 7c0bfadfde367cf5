// SPDX-License-Identifier: MIT
//
// Package dsp implements Component B: sliding-window FFT, log-frequency
// binning, per-bar EQ, auto-sensitivity (AGC), and gravity/smoothing
// falloff — spec.md §4.B, applied once per incoming audio frame.
//
// The FFT kernel is gonum.org/v1/gonum/dsp/fourier, the teacher's FFT
// library (already wired through internal/fft and internal/analysis
// there), not a hand-rolled Cooley-Tukey — spec.md §4.B's "implementation
// choice" language for the kernel explicitly allows this substitution.
package dsp

import (
	"math"
	"math/cmplx"

	"viscapture/internal/config"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	gravity           = 0.08
	decayFactor       = 0.77
	silenceThreshold  = 1e-4
	initRampThreshold = 0.005
	initRampFactor    = 1.1
	initRampCeiling   = 2.0
	overshootFactor   = 0.98
	growthFactor      = 1.001
	sensMin           = 0.02
	sensMax           = 20.0
	sensInitial       = 1.0
)

// Processor holds the one owned instance of processor state spec.md §3/§9
// calls for — reinitialized whenever bar count or frequency ceiling
// changes, or the subscriber reconnects.
type Processor struct {
	barCount int
	freqMax  int

	window []float32 // length FFTSize, FIFO of real audio
	hann   []float32 // length FFTSize

	lo, hi []int     // per-bar bin cutoffs
	eq     []float32 // per-bar EQ weight

	mem, peak, fall []float32 // per-bar smoothing/gravity state

	sens     float32
	initMode bool

	fftObj      *fourier.FFT
	fftInput    []float64    // windowed samples cast to float64 at the FFT boundary
	fftOutput   []complex128 // length FFTSize/2+1
	magnitude   []float32    // length FFTSize/2, cast back from float64 at the boundary
	lastOvershoot bool
}

// NewProcessor builds a Processor at the given bar count and frequency
// ceiling, matching the Initialization semantics of spec.md §4.B.
func NewProcessor(barCount, freqMax int) *Processor {
	p := &Processor{
		fftObj:    fourier.NewFFT(config.FFTSize),
		fftInput:  make([]float64, config.FFTSize),
		fftOutput: make([]complex128, config.FFTSize/2+1),
		magnitude: make([]float32, config.FFTSize/2),
		window:    make([]float32, config.FFTSize),
		hann:      buildHannWeights(config.FFTSize),
	}
	p.Reconfigure(barCount, freqMax)
	return p
}

// Reconfigure rebuilds bin cutoffs and EQ weights for a new bar count or
// frequency ceiling and resets all processing state, per spec.md §4.D's
// SET_BAR_COUNT/SET_FREQ_MAX behavior.
func (p *Processor) Reconfigure(barCount, freqMax int) {
	p.barCount = barCount
	p.freqMax = freqMax

	lo, hi, centerFreq := buildBinCutoffs(barCount, config.FreqMin, float64(freqMax), config.FFTSize, config.SampleRate)
	p.lo = lo
	p.hi = hi
	p.eq = buildEQWeights(centerFreq, config.FreqMin)

	p.Reset()
}

// Reset zeroes window and per-bar state and restores sens/init_mode to
// their initial values, without touching the bin cutoffs/EQ weights —
// used on subscriber reconnect (spec.md §3, "Subscriber session").
func (p *Processor) Reset() {
	for i := range p.window {
		p.window[i] = 0
	}
	p.mem = make([]float32, p.barCount)
	p.peak = make([]float32, p.barCount)
	p.fall = make([]float32, p.barCount)
	p.sens = sensInitial
	p.initMode = true
	p.lastOvershoot = false
}

// BarCount reports the active bar count.
func (p *Processor) BarCount() int { return p.barCount }

// Sens reports the current auto-sensitivity scalar, exported for tests and
// the testable sens-range invariant.
func (p *Processor) Sens() float32 { return p.sens }

// Step runs the full pipeline of spec.md §4.B on one audio frame and
// returns the bar vector. The returned slice is owned by the caller and
// safe to hold past the next Step call (a fresh slice per call, per the
// orchestrator's send-then-continue usage).
func (p *Processor) Step(frame []float32) []float32 {
	p.slide(frame)
	audioMax := peakAbs(frame)
	silence := audioMax < silenceThreshold

	p.transformWindow()

	bars := make([]float32, p.barCount)
	overshoot := false
	halfSize := float32(config.FFTSize / 2)

	for b := 0; b < p.barCount; b++ {
		var sum float32
		count := p.hi[b] - p.lo[b] + 1
		for k := p.lo[b]; k <= p.hi[b]; k++ {
			sum += p.magnitude[k]
		}
		avg := sum / float32(count)

		raw := float32(math.Sqrt(float64(avg/halfSize))) * p.eq[b] * p.sens

		if raw > p.mem[b] {
			p.mem[b] = raw
		} else {
			p.mem[b] *= decayFactor
		}

		if p.mem[b] >= p.peak[b] {
			p.peak[b] = p.mem[b]
			p.fall[b] = 0
		} else {
			p.peak[b] -= gravity * p.fall[b]
			p.fall[b] += gravity
			if p.peak[b] < p.mem[b] {
				p.peak[b] = p.mem[b]
			}
			if p.peak[b] < 0 {
				p.peak[b] = 0
			}
		}

		if p.peak[b] > 1 {
			overshoot = true
		}

		bars[b] = min32(p.peak[b], 1)
	}

	p.lastOvershoot = overshoot
	p.updateSens(overshoot, silence, audioMax)

	return bars
}

// slide shifts the window left by frame_size samples and appends frame at
// the tail — spec.md §4.B step 1. The window is always full of real audio
// in steady state (never zero-padded), satisfying the "window freshness"
// testable property.
func (p *Processor) slide(frame []float32) {
	n := len(frame)
	copy(p.window, p.window[n:])
	copy(p.window[len(p.window)-n:], frame)
}

// transformWindow applies the Hann window across the full FFT buffer, runs
// the FFT, and computes |X[k]| for k in [0, FFTSize/2) — spec.md §4.B steps
// 3-4. FFT is non-normalized; Step's binning stage divides by FFTSize/2 and
// takes the sqrt, per the numerical notes.
func (p *Processor) transformWindow() {
	for i, s := range p.window {
		p.fftInput[i] = float64(s * p.hann[i])
	}
	p.fftObj.Coefficients(p.fftOutput, p.fftInput)
	for k := 0; k < len(p.magnitude); k++ {
		p.magnitude[k] = float32(cmplx.Abs(p.fftOutput[k]))
	}
}

// updateSens applies spec.md §4.B's auto-sensitivity rule.
func (p *Processor) updateSens(overshoot, silence bool, audioMax float32) {
	switch {
	case overshoot:
		p.sens *= overshootFactor
		p.initMode = false
	case !silence:
		p.sens *= growthFactor
		if p.initMode && audioMax > initRampThreshold {
			p.sens *= initRampFactor
			if p.sens > initRampCeiling {
				p.initMode = false
			}
		}
	}

	if p.sens < sensMin {
		p.sens = sensMin
	}
	if p.sens > sensMax {
		p.sens = sensMax
	}
}

// Magnitudes returns the last computed magnitude spectrum (length
// FFTSize/2), for internal/telemetry's band-energy computation — it must
// not re-run the FFT for a frame the processor already transformed.
func (p *Processor) Magnitudes() []float32 {
	return p.magnitude
}

// FrequencyForBin returns the frequency in Hz for FFT bin k.
func (p *Processor) FrequencyForBin(k int) float64 {
	return float64(k) * float64(config.SampleRate) / float64(config.FFTSize)
}

func peakAbs(frame []float32) float32 {
	var max float32
	for _, s := range frame {
		a := s
		if a < 0 {
			a = -a
		}
		if a > max {
			max = a
		}
	}
	return max
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
