package femm

import (
	"fmt"
	"math"

	"github.com/avirtanen/eccsweep/internal/results"
)

// Column names of stored torque curves.
const (
	ColTheta  = "theta_deg"
	ColTorque = "torque_Nm"
)

// TorqueCurve is torque sampled against mechanical rotor angle over one
// electrical period. Angles increase strictly from zero.
type TorqueCurve struct {
	ThetaDeg []float64
	TorqueNm []float64
}

func (c *TorqueCurve) append(thetaDeg, torqueNm float64) {
	c.ThetaDeg = append(c.ThetaDeg, thetaDeg)
	c.TorqueNm = append(c.TorqueNm, torqueNm)
}

// Table renders the curve as a storable two-column table.
func (c *TorqueCurve) Table() *results.Table {
	t := &results.Table{Header: []string{ColTheta, ColTorque}}
	for i := range c.ThetaDeg {
		t.Rows = append(t.Rows, []float64{c.ThetaDeg[i], c.TorqueNm[i]})
	}
	return t
}

// CurveFromTable reads a stored torque curve back from its table form.
func CurveFromTable(t *results.Table) (*TorqueCurve, error) {
	theta, ok := t.Column(ColTheta)
	if !ok {
		return nil, fmt.Errorf("femm: table has no %s column", ColTheta)
	}
	torque, ok := t.Column(ColTorque)
	if !ok {
		return nil, fmt.Errorf("femm: table has no %s column", ColTorque)
	}
	return &TorqueCurve{ThetaDeg: theta, TorqueNm: torque}, nil
}

// SweepAngles returns the mechanical angles visited for one electrical
// period. The sample count is ceil(360/stepElecDeg) regardless of pole
// count: higher pole counts shrink both the span and the mechanical step by
// the same factor.
func SweepAngles(poles int, stepElecDeg float64) []float64 {
	polePairs := float64(poles) / 2
	stepMech := stepElecDeg / polePairs

	// The epsilon absorbs division artifacts when the step divides 360.
	n := int(math.Ceil(360.0/stepElecDeg - 1e-9))
	angles := make([]float64, n)
	for i := range angles {
		angles[i] = float64(i) * stepMech
	}
	return angles
}
