// Package femm drives the electromagnetic field solver through one stateful
// session per case. The solver itself is external and opaque; everything the
// sweep needs from it fits the small Session surface below.
package femm

import "context"

// Engine opens solver sessions against motor geometry assets.
type Engine interface {
	Open(ctx context.Context, assetPath string) (Session, error)
}

// Session is a live solver connection with one geometry loaded. Transforms
// are relative and cumulative, and act on the currently selected group; the
// selection persists across Solve. Callers own the undo of every transform
// they apply within a sweep step.
type Session interface {
	// Select chooses the geometry group subsequent transforms act on.
	Select(group int) error
	// Translate shifts the selection by (dx, dy) millimeters.
	Translate(dx, dy float64) error
	// Rotate turns the selection by angleDeg degrees about (cx, cy).
	Rotate(cx, cy, angleDeg float64) error
	// Solve runs the field analysis for the current geometry.
	Solve() error
	// LoadSolution makes the last Solve's results available for integrals.
	LoadSolution() error
	// Integral evaluates the torque integral over the given region.
	Integral(region int) (float64, error)
	// Close releases the session. Safe to call after a failed operation.
	Close() error
}
