package dsp

import "math"

const (
	// SilenceRMS is the level below which no pitch is estimated.
	SilenceRMS = 0.01
	// TrimThreshold bounds the near-silent edges cut before correlation.
	TrimThreshold = 0.2

	MinPitchHz = 60.0
	MaxPitchHz = 1000.0
)

// EstimatePitch returns the fundamental frequency of buf in Hz using
// autocorrelation, or 0 when the buffer is silent or the result falls outside
// [MinPitchHz, MaxPitchHz].
func EstimatePitch(buf []float32, sampleRate float64) float64 {
	size := len(buf)
	if size < 3 || sampleRate <= 0 {
		return 0
	}
	if Analyze(buf).RMS < SilenceRMS {
		return 0
	}

	r1, r2 := 0, size-1
	for i := 0; i < size/2; i++ {
		if math.Abs(float64(buf[i])) < TrimThreshold {
			r1 = i
			break
		}
	}
	for i := 1; i < size/2; i++ {
		if math.Abs(float64(buf[size-i])) < TrimThreshold {
			r2 = size - i
			break
		}
	}
	x := buf[r1:r2]
	n := len(x)
	if n < 3 {
		return 0
	}

	c := autocorrelate(x)

	// Skip the zero-lag lobe, then take the strongest lag.
	d := 0
	for d < n-1 && c[d] > c[d+1] {
		d++
	}
	maxVal, maxPos := math.Inf(-1), -1
	for i := d; i < n; i++ {
		if c[i] > maxVal {
			maxVal = c[i]
			maxPos = i
		}
	}
	if maxPos <= 0 {
		return 0
	}

	t0 := float64(maxPos)
	x1, x2, x3 := c[maxPos-1], c[maxPos], 0.0
	if maxPos+1 < n {
		x3 = c[maxPos+1]
	}
	a := (x1 + x3 - 2*x2) / 2
	b := (x3 - x1) / 2
	if a != 0 {
		t0 -= b / (2 * a)
	}
	if t0 <= 0 {
		return 0
	}

	freq := sampleRate / t0
	if freq < MinPitchHz || freq > MaxPitchHz {
		return 0
	}
	return freq
}

func autocorrelate(x []float32) []float64 {
	n := len(x)
	c := make([]float64, n)
	for lag := 0; lag < n; lag++ {
		var sum float64
		for j := 0; j < n-lag; j++ {
			sum += float64(x[j]) * float64(x[j+lag])
		}
		c[lag] = sum
	}
	return c
}

// CentsDiff is the signed distance from ref to freq in cents.
// It returns 0 if either frequency is not positive.
func CentsDiff(freq, ref float64) float64 {
	if freq <= 0 || ref <= 0 {
		return 0
	}
	return 1200 * math.Log2(freq/ref)
}
