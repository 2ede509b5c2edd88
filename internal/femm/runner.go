package femm

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avirtanen/eccsweep/internal/analysis"
	"github.com/avirtanen/eccsweep/internal/caseid"
	"github.com/avirtanen/eccsweep/internal/config"
	"github.com/avirtanen/eccsweep/internal/progress"
	"github.com/avirtanen/eccsweep/internal/results"
	"github.com/avirtanen/eccsweep/internal/sweep"
)

// Runner executes the electromagnetic sweep batch: every geometry case of
// every motor, one solver session per case, results persisted under the
// case key.
type Runner struct {
	engine Engine
	store  *results.Store
	log    *slog.Logger
	events chan<- progress.Event
}

func NewRunner(engine Engine, store *results.Store, log *slog.Logger) *Runner {
	return &Runner{engine: engine, store: store, log: log}
}

// Notify attaches a monitor channel fed with per-case events.
func (r *Runner) Notify(ch chan<- progress.Event) {
	r.events = ch
}

// BatchSummary reports how a batch went. Partial completion is a normal
// outcome; failed cases and skipped motors are detailed in the log.
type BatchSummary struct {
	CasesCompleted int
	CasesFailed    int
	MotorsSkipped  []string
	Elapsed        time.Duration
}

// Run sweeps all motors and geometry cases sequentially. It returns early
// only when ctx is done; every other failure is contained to the case or
// motor that caused it.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*BatchSummary, error) {
	start := time.Now()
	summary := &BatchSummary{}
	cases := sweep.GeometryCases(cfg.Sim.Geometry)

	for _, motor := range cfg.Motors {
		asset := filepath.Join(cfg.Paths.CAD, motor.ID+".dxf")
		if _, err := os.Stat(asset); err != nil {
			r.log.Warn("geometry asset missing, skipping motor",
				"motor", motor.ID, "asset", asset, "err", ErrAssetMissing)
			summary.MotorsSkipped = append(summary.MotorsSkipped, motor.ID)
			progress.Send(r.events, progress.Event{
				Kind: progress.MotorSkipped, Stage: "femm", Motor: motor.ID, Err: ErrAssetMissing,
			})
			continue
		}

		for i, c := range cases {
			if ctx.Err() != nil {
				summary.Elapsed = time.Since(start)
				return summary, ctx.Err()
			}

			key := caseid.Geometry(motor.ID, c)
			r.log.Info("running electromagnetic case",
				"motor", motor.ID, "case", key, "index", i+1, "total", len(cases))
			progress.Send(r.events, progress.Event{
				Kind: progress.CaseStarted, Stage: "femm",
				Motor: motor.ID, Case: key, Index: i + 1, Total: len(cases),
			})

			curve, err := r.runCase(ctx, asset, motor, c, cfg.Sim.FEMM)
			if err == nil {
				err = r.store.Put(key, curve.Table())
			}
			if err != nil {
				if ctx.Err() != nil {
					summary.Elapsed = time.Since(start)
					return summary, ctx.Err()
				}
				summary.CasesFailed++
				progress.Send(r.events, progress.Event{
					Kind: progress.CaseFailed, Stage: "femm",
					Motor: motor.ID, Case: key, Index: i + 1, Total: len(cases), Err: err,
				})

				var se *SessionError
				if errors.As(err, &se) && se.Op == "open" {
					r.log.Error("solver session would not open, abandoning motor",
						"motor", motor.ID, "err", err)
					summary.MotorsSkipped = append(summary.MotorsSkipped, motor.ID)
					break
				}
				r.log.Error("case failed", "motor", motor.ID, "case", key, "err", err)
				continue
			}

			summary.CasesCompleted++
			r.log.Debug("case complete", "case", key, "samples", len(curve.ThetaDeg))
			progress.Send(r.events, progress.Event{
				Kind: progress.CaseFinished, Stage: "femm",
				Motor: motor.ID, Case: key, Index: i + 1, Total: len(cases),
				Ripple: analysis.Ripple(curve.TorqueNm),
			})
		}
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

// runCase measures one full torque curve in a fresh solver session.
func (r *Runner) runCase(ctx context.Context, asset string, motor config.Motor, c sweep.GeometryCase, p config.FEMMParams) (*TorqueCurve, error) {
	if p.TimeoutS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutS*float64(time.Second)))
		defer cancel()
	}

	sess, err := r.engine.Open(ctx, asset)
	if err != nil {
		return nil, sessionErr("open", err)
	}
	defer sess.Close()

	// The static offset is the case geometry and stays applied for the
	// whole sweep. Tilt maps to no transform in the 2-D section; it lives
	// only in the case identity.
	if err := sess.Select(p.RotorGroup); err != nil {
		return nil, err
	}
	if c.StaticEccMM != 0 {
		if err := sess.Translate(c.StaticEccMM, 0); err != nil {
			return nil, err
		}
	}

	angles := SweepAngles(motor.Poles, p.SweepStepElecDeg)
	curve := &TorqueCurve{
		ThetaDeg: make([]float64, 0, len(angles)),
		TorqueNm: make([]float64, 0, len(angles)),
	}
	for _, angle := range angles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := measure(sess, c, angle, p, curve); err != nil {
			return nil, err
		}
	}
	return curve, nil
}

// measure solves one rotor position and records the torque. Transforms are
// relative, so the step unwinds its own rotation and dynamic offset before
// returning; the next step then starts from the baselined geometry.
func measure(sess Session, c sweep.GeometryCase, angleDeg float64, p config.FEMMParams, curve *TorqueCurve) error {
	if err := sess.Select(p.RotorGroup); err != nil {
		return err
	}
	if err := sess.Rotate(0, 0, angleDeg); err != nil {
		return err
	}
	if c.DynamicEccMM != 0 {
		if err := sess.Translate(c.DynamicEccMM, 0); err != nil {
			return err
		}
	}

	if err := sess.Solve(); err != nil {
		return err
	}
	if err := sess.LoadSolution(); err != nil {
		return err
	}
	torque, err := sess.Integral(p.TorqueRegion)
	if err != nil {
		return err
	}
	curve.append(angleDeg, torque)

	if c.DynamicEccMM != 0 {
		if err := sess.Translate(-c.DynamicEccMM, 0); err != nil {
			return err
		}
	}
	return sess.Rotate(0, 0, -angleDeg)
}
