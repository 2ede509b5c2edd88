// Package analysis computes the summary statistics reported over torque
// curves and system responses.
package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Ripple is the peak-to-peak variation relative to the mean, in percent.
// An empty or zero-mean series reports zero.
func Ripple(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return 0
	}
	return (floats.Max(values) - floats.Min(values)) / mean * 100
}

// CurveStats summarizes one sampled curve.
type CurveStats struct {
	Min        float64
	Max        float64
	Mean       float64
	PeakToPeak float64
	StdDev     float64
}

func Describe(values []float64) CurveStats {
	if len(values) == 0 {
		return CurveStats{}
	}
	min, max := floats.Min(values), floats.Max(values)
	return CurveStats{
		Min:        min,
		Max:        max,
		Mean:       stat.Mean(values, nil),
		PeakToPeak: max - min,
		StdDev:     stat.StdDev(values, nil),
	}
}
