package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Harmonic is one spectral component of a torque curve sampled over a
// full electrical period.
type Harmonic struct {
	Order     int
	Magnitude float64
}

// Harmonics decomposes a uniformly sampled curve into its harmonic orders,
// skipping the DC term. Order k means k cycles per sampled span. Magnitudes
// are amplitudes in the unit of the input. At most maxOrder components are
// returned, fewer when the sample count cannot resolve them.
func Harmonics(values []float64, maxOrder int) []Harmonic {
	if len(values) < 2 || maxOrder < 1 {
		return nil
	}

	coeffs := fft.FFTReal(values)

	n := len(values) / 2 // orders above Nyquist alias
	if n > maxOrder {
		n = maxOrder
	}
	out := make([]Harmonic, 0, n)
	for k := 1; k <= n; k++ {
		out = append(out, Harmonic{
			Order:     k,
			Magnitude: 2 * cmplx.Abs(coeffs[k]) / float64(len(values)),
		})
	}
	return out
}

// DominantHarmonic picks the strongest non-DC component, or order 0 when
// the curve is too short to decompose.
func DominantHarmonic(values []float64) Harmonic {
	var best Harmonic
	for _, h := range Harmonics(values, len(values)/2) {
		if h.Magnitude > best.Magnitude {
			best = h
		}
	}
	return best
}
