package pattern

import "math"

// =============================================================================
// STATISTICAL HELPERS - FEATURE EXTRACTION PRIMITIVES
// =============================================================================

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance, 0 for an empty slice.
// Variance of a constant list is exactly 0.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// Skewness returns the population skewness, 0 when variance vanishes.
func Skewness(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	v := Variance(xs)
	if v == 0 {
		return 0
	}
	sd := math.Sqrt(v)
	var sum float64
	for _, x := range xs {
		d := (x - m) / sd
		sum += d * d * d
	}
	return sum / float64(len(xs))
}

// Kurtosis returns the population excess kurtosis, 0 when variance vanishes.
func Kurtosis(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	v := Variance(xs)
	if v == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d * d * d
	}
	return sum/(float64(len(xs))*v*v) - 3
}

// Normalize rescales a series to [0,1]. A constant series maps to all 0.5.
func Normalize(xs []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	out := make([]float64, len(xs))
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, x := range xs {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}

// Windows splits a series into fixed-size overlapping segments.
// step = size - overlap; a trailing partial window is dropped.
func Windows(xs []float64, size, overlap int) [][]float64 {
	if size <= 0 || len(xs) < size {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = 1
	}
	var out [][]float64
	for start := 0; start+size <= len(xs); start += step {
		out = append(out, xs[start:start+size])
	}
	return out
}

// powerSpectrum computes the one-sided DFT magnitude spectrum. Segments are
// short (window-sized), so the naive O(n^2) transform is fine.
func powerSpectrum(xs []float64) []float64 {
	n := len(xs)
	if n == 0 {
		return nil
	}
	bins := n/2 + 1
	spec := make([]float64, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		for t, x := range xs {
			phase := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += x * math.Cos(phase)
			im += x * math.Sin(phase)
		}
		spec[k] = re*re + im*im
	}
	return spec
}

// DominantFrequency returns the normalized frequency (cycles per sample) of
// the strongest non-DC spectral bin.
func DominantFrequency(xs []float64) float64 {
	spec := powerSpectrum(xs)
	if len(spec) < 2 {
		return 0
	}
	best, bestPow := 1, spec[1]
	for k := 2; k < len(spec); k++ {
		if spec[k] > bestPow {
			best, bestPow = k, spec[k]
		}
	}
	if bestPow == 0 {
		return 0
	}
	return float64(best) / float64(len(xs))
}

// SpectralEntropy returns the normalized Shannon entropy of the non-DC
// power spectrum, in [0,1]. Pure tones score near 0, noise near 1.
func SpectralEntropy(xs []float64) float64 {
	spec := powerSpectrum(xs)
	if len(spec) < 3 {
		return 0
	}
	spec = spec[1:] // drop DC
	var total float64
	for _, p := range spec {
		total += p
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, p := range spec {
		if p == 0 {
			continue
		}
		q := p / total
		h -= q * math.Log(q)
	}
	return h / math.Log(float64(len(spec)))
}

// Complexity measures a segment via normalized mean absolute successive
// difference, in [0,1]. Smooth slow signals score low, jittery ones high.
func Complexity(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	norm := Normalize(xs)
	var sum float64
	for i := 1; i < len(norm); i++ {
		sum += math.Abs(norm[i] - norm[i-1])
	}
	return clamp01(sum / float64(len(norm)-1) * 2)
}

// Regularity is the autocorrelation peak over lags 1..n/2, in [0,1].
// Periodic segments score high.
func Regularity(xs []float64) float64 {
	n := len(xs)
	if n < 4 {
		return 0
	}
	m := Mean(xs)
	v := Variance(xs)
	if v == 0 {
		return 1
	}
	var best float64
	for lag := 1; lag <= n/2; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += (xs[i] - m) * (xs[i+lag] - m)
		}
		r := sum / (float64(n-lag) * v)
		if r > best {
			best = r
		}
	}
	return clamp01(best)
}

// linearSlope fits y = a + b*i over the samples and returns b.
func linearSlope(ys []float64) float64 {
	n := len(ys)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := float64(n)*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (float64(n)*sumXY - sumX*sumY) / den
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
