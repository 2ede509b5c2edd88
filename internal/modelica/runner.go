// Package modelica runs the system-level simulation batch: one OpenModelica
// invocation per controller/frequency/speed combination, fed by the nominal
// torque map each motor earned in the electromagnetic stage.
package modelica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/avirtanen/eccsweep/internal/caseid"
	"github.com/avirtanen/eccsweep/internal/config"
	"github.com/avirtanen/eccsweep/internal/progress"
	"github.com/avirtanen/eccsweep/internal/results"
	"github.com/avirtanen/eccsweep/internal/subst"
	"github.com/avirtanen/eccsweep/internal/sweep"
	"github.com/avirtanen/eccsweep/internal/toolrun"
)

// modelicaPackage is the wrapper package every generated model lives in.
const modelicaPackage = "EccentricityStudy"

// templateFields are the placeholders a model template may reference; the
// template is rejected up front when it names anything else.
var templateFields = map[string]bool{
	"csv_file_path":          true,
	"motor_poles":            true,
	"target_speed_rad_per_s": true,
	"hil_ts":                 true,
	"encoder_resolution":     true,
	"controller_type":        true,
}

type Runner struct {
	store  *results.Store
	log    *slog.Logger
	events chan<- progress.Event

	// run invokes the external tool; swapped in tests.
	run func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result
}

func NewRunner(store *results.Store, log *slog.Logger) *Runner {
	return &Runner{store: store, log: log, run: toolrun.Run}
}

// Notify attaches a monitor channel fed with per-case events.
func (r *Runner) Notify(ch chan<- progress.Event) {
	r.events = ch
}

type BatchSummary struct {
	CasesCompleted int
	CasesFailed    int
	MotorsSkipped  []string
	Elapsed        time.Duration
}

// Run executes the system simulation batch. A missing compiler aborts the
// batch (every remaining case would fail the same way); any other per-case
// failure is logged and skipped.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*BatchSummary, error) {
	start := time.Now()
	summary := &BatchSummary{}

	tpl, err := r.loadTemplate(cfg.Paths.ModelTemplate)
	if err != nil {
		return summary, err
	}
	if err := os.MkdirAll(cfg.Paths.Work, 0755); err != nil {
		return summary, err
	}
	if err := ensurePackageManifest(cfg.Paths.Work); err != nil {
		return summary, err
	}

	cases := sweep.SystemCases(cfg.Sim.System)

	for _, motor := range cfg.Motors {
		nominal := caseid.Nominal(motor.ID)
		if !r.store.Exists(nominal) {
			r.log.Warn("nominal torque map missing, skipping system simulations",
				"motor", motor.ID, "key", nominal)
			summary.MotorsSkipped = append(summary.MotorsSkipped, motor.ID)
			progress.Send(r.events, progress.Event{
				Kind: progress.MotorSkipped, Stage: "system", Motor: motor.ID,
			})
			continue
		}

		torqueMap, err := filepath.Abs(r.store.Path(nominal))
		if err != nil {
			return summary, err
		}

		for i, c := range cases {
			if ctx.Err() != nil {
				summary.Elapsed = time.Since(start)
				return summary, ctx.Err()
			}

			name := caseid.System(motor.ID, c)
			r.log.Info("running system case",
				"motor", motor.ID, "case", name, "index", i+1, "total", len(cases))
			progress.Send(r.events, progress.Event{
				Kind: progress.CaseStarted, Stage: "system",
				Motor: motor.ID, Case: name, Index: i + 1, Total: len(cases),
			})

			err := r.runCase(ctx, tpl, torqueMap, motor, c, cfg)
			if err != nil {
				summary.CasesFailed++
				progress.Send(r.events, progress.Event{
					Kind: progress.CaseFailed, Stage: "system",
					Motor: motor.ID, Case: name, Index: i + 1, Total: len(cases), Err: err,
				})
				var fatal *FatalError
				if errors.As(err, &fatal) {
					summary.Elapsed = time.Since(start)
					return summary, err
				}
				r.log.Error("system case failed", "motor", motor.ID, "case", name, "err", err)
				continue
			}

			summary.CasesCompleted++
			progress.Send(r.events, progress.Event{
				Kind: progress.CaseFinished, Stage: "system",
				Motor: motor.ID, Case: name, Index: i + 1, Total: len(cases),
			})
		}
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

func (r *Runner) loadTemplate(path string) (*subst.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modelica: model template: %w", err)
	}
	tpl, err := subst.Parse(string(data))
	if err != nil {
		return nil, err
	}
	for _, f := range tpl.Fields() {
		if !templateFields[f] {
			return nil, fmt.Errorf("modelica: template references unknown field %q", f)
		}
	}
	return tpl, nil
}

// ensurePackageManifest writes the wrapper package.mo the compiler needs to
// resolve generated models. An existing manifest is left alone.
func ensurePackageManifest(workDir string) error {
	path := filepath.Join(workDir, "package.mo")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	content := fmt.Sprintf("within; package %s end %s;\n", modelicaPackage, modelicaPackage)
	return os.WriteFile(path, []byte(content), 0644)
}

// runCase instantiates the model for one case and hands it to the compiler.
// Generated files are removed on every exit path.
func (r *Runner) runCase(ctx context.Context, tpl *subst.Template, torqueMap string, motor config.Motor, c sweep.SystemCase, cfg *config.Config) error {
	name := caseid.System(motor.ID, c)
	work := cfg.Paths.Work
	sys := cfg.Sim.System

	hilTs := 1.0 / (c.SwitchingKHz * 1000.0)
	targetRadS := c.SpeedRPM * 2 * math.Pi / 60
	encoderRes := 1 << sys.EncoderBits

	model, err := tpl.Render(map[string]string{
		"csv_file_path":          filepath.ToSlash(torqueMap),
		"motor_poles":            strconv.Itoa(motor.Poles),
		"target_speed_rad_per_s": formatNum(targetRadS),
		"hil_ts":                 formatNum(hilTs),
		"encoder_resolution":     strconv.Itoa(encoderRes),
		"controller_type":        c.Controller,
	})
	if err != nil {
		return err
	}

	modelName := "Temp_" + name
	modelPath := filepath.Join(work, modelName+".mo")
	scriptPath := filepath.Join(work, name+".mos")
	resultPath := filepath.Join(work, name+"_res.csv")
	defer func() {
		os.Remove(modelPath)
		os.Remove(scriptPath)
		os.Remove(resultPath)
	}()

	if err := os.WriteFile(modelPath, []byte(model), 0644); err != nil {
		return err
	}
	script := simulationScript(modelName, name, sys.SimTimeS)
	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return err
	}

	res := r.run(ctx, toolrun.Cmd{
		Path:    sys.OMCPath,
		Args:    []string{name + ".mos"},
		Dir:     work,
		Timeout: time.Duration(sys.TimeoutS * float64(time.Second)),
	})

	switch res.Outcome {
	case toolrun.NotFound:
		return &FatalError{Err: fmt.Errorf("modelica: compiler %q not found: %w", sys.OMCPath, res.Err)}
	case toolrun.NonZeroExit:
		return fmt.Errorf("modelica: compiler exited with code %d: %s", res.ExitCode, tail(res.Stderr))
	case toolrun.TimedOut:
		return fmt.Errorf("modelica: case exceeded %gs budget", sys.TimeoutS)
	}

	if _, err := os.Stat(resultPath); err != nil {
		return fmt.Errorf("modelica: compiler reported success but wrote no %s_res.csv (stdout: %s)",
			name, tail(res.Stdout))
	}
	return r.store.ImportFile(caseid.SystemResult(motor.ID, c), resultPath)
}

// simulationScript builds the .mos the compiler executes for one case. The
// result CSV lands next to the script as <caseName>_res.csv.
func simulationScript(modelName, caseName string, stopTime float64) string {
	return fmt.Sprintf(`loadModel(Modelica);
getErrorString();
loadFile(%q);
getErrorString();
simulate(%s.%s, startTime=0, stopTime=%s, outputFormat="csv", fileNamePrefix=%q);
getErrorString();
`, modelName+".mo", modelicaPackage, modelName, formatNum(stopTime), caseName)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// tail clips tool output for log lines; full output stays available at
// debug level upstream.
func tail(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
