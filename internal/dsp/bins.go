package dsp

import "math"

// buildBinCutoffs generates barCount+1 log-spaced boundary frequencies from
// freqMin to freqMax, converts each to an FFT bin index, and enforces
// strict monotonic growth so every bar owns at least one unique bin —
// spec.md §4.B's "Bin cutoff construction".
//
// Returns lo/hi (consecutive cutoffs, one pair per bar) and centerFreq, the
// geometric-mean frequency of each bar's span used for the EQ weight.
func buildBinCutoffs(barCount int, freqMin, freqMax float64, fftSize, sampleRate int) (lo, hi []int, centerFreq []float64) {
	n := barCount
	maxBin := fftSize/2 - 1

	boundaryFreq := make([]float64, n+1)
	boundaryBin := make([]int, n+1)

	logMin := math.Log(freqMin)
	logMax := math.Log(freqMax)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		freq := math.Exp(logMin + t*(logMax-logMin))
		boundaryFreq[i] = freq

		bin := int(math.Round(freq * float64(fftSize) / float64(sampleRate)))
		if bin < 1 {
			bin = 1
		}
		if bin > maxBin {
			bin = maxBin
		}
		boundaryBin[i] = bin
	}

	// Forward pass: push each cutoff to at least prev+1.
	for i := 1; i <= n; i++ {
		if boundaryBin[i] <= boundaryBin[i-1] {
			boundaryBin[i] = boundaryBin[i-1] + 1
		}
	}

	// Re-clamp to the upper bound; if the forward pass pushed the tail past
	// maxBin, pull the whole tail back down with a backward pass so
	// monotonic growth survives the clamp.
	for i := n; i >= 0; i-- {
		if boundaryBin[i] > maxBin {
			boundaryBin[i] = maxBin
		}
	}
	for i := n - 1; i >= 0; i-- {
		if boundaryBin[i] >= boundaryBin[i+1] {
			boundaryBin[i] = boundaryBin[i+1] - 1
		}
	}
	for i := range boundaryBin {
		if boundaryBin[i] < 1 {
			boundaryBin[i] = 1
		}
	}

	lo = make([]int, n)
	hi = make([]int, n)
	centerFreq = make([]float64, n)
	for b := 0; b < n; b++ {
		lo[b] = boundaryBin[b]
		hi[b] = boundaryBin[b+1]
		centerFreq[b] = math.Sqrt(boundaryFreq[b] * boundaryFreq[b+1])
	}
	return lo, hi, centerFreq
}

// buildEQWeights computes eq[b] = (centerFreq(b) / freqMin)^0.5, spec.md
// §4.B's high-frequency boost.
func buildEQWeights(centerFreq []float64, freqMin float64) []float32 {
	eq := make([]float32, len(centerFreq))
	for b, f := range centerFreq {
		eq[b] = float32(math.Sqrt(f / freqMin))
	}
	return eq
}

// buildHannWeights returns the FFTSize-length Hann window coefficients,
// grounded on the teacher's internal/fft/fft.go window construction.
func buildHannWeights(fftSize int) []float32 {
	w := make([]float32, fftSize)
	for i := range w {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))))
	}
	return w
}
