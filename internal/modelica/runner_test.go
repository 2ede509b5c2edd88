package modelica

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avirtanen/eccsweep/internal/caseid"
	"github.com/avirtanen/eccsweep/internal/config"
	"github.com/avirtanen/eccsweep/internal/results"
	"github.com/avirtanen/eccsweep/internal/toolrun"
)

const testTemplate = `model M
  parameter Real ts = {hil_ts};
  parameter Integer poles = {motor_poles};
  parameter Real target = {target_speed_rad_per_s};
  parameter Integer enc = {encoder_resolution};
  ctrl = "{controller_type}";
  table = "{csv_file_path}";
end M;
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testSetup builds a config with a 2x2x1 system sweep, a template on disk,
// and a store holding the nominal torque map for each given motor.
func testSetup(t *testing.T, motorsWithNominal ...string) (*config.Config, *results.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Paths.Work = t.TempDir()
	cfg.Paths.ModelTemplate = filepath.Join(t.TempDir(), "model.mo.template")
	if err := os.WriteFile(cfg.Paths.ModelTemplate, []byte(testTemplate), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg.Motors = nil
	for _, id := range motorsWithNominal {
		cfg.Motors = append(cfg.Motors, config.Motor{ID: id, Poles: 8})
	}
	cfg.Sim.System.Controllers = []string{"PI", "FOC"}
	cfg.Sim.System.HILFreqKHz = []float64{10, 20}
	cfg.Sim.System.SpeedRPM = []float64{1000}

	st := results.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("store init: %v", err)
	}
	for _, id := range motorsWithNominal {
		err := st.Put(caseid.Nominal(id), &results.Table{
			Header: []string{"theta_deg", "torque_Nm"},
			Rows:   [][]float64{{0, 1.2}, {0.25, 1.25}},
		})
		if err != nil {
			t.Fatalf("seed nominal: %v", err)
		}
	}
	return cfg, st
}

// succeedingOMC writes the expected result CSV like a real compiler run.
func succeedingOMC(t *testing.T) func(context.Context, toolrun.Cmd) toolrun.Result {
	return func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		t.Helper()
		name := strings.TrimSuffix(cmd.Args[0], ".mos")
		out := filepath.Join(cmd.Dir, name+"_res.csv")
		if err := os.WriteFile(out, []byte("time,load.w\n0,0\n0.1,10.5\n"), 0644); err != nil {
			t.Fatalf("fake compiler output: %v", err)
		}
		return toolrun.Result{Outcome: toolrun.Success}
	}
}

func TestRunImportsAllCaseResults(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	r := NewRunner(st, discardLogger())
	r.run = succeedingOMC(t)

	summary, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.CasesCompleted != 4 {
		t.Errorf("completed = %d, want 4 (2 controllers x 2 frequencies x 1 speed)", summary.CasesCompleted)
	}

	keys, _ := st.ListByPrefix("M1_")
	resCount := 0
	for _, k := range keys {
		if strings.HasSuffix(k, "_res") {
			resCount++
		}
	}
	if resCount != 4 {
		t.Errorf("expected 4 result entries, got %d: %v", resCount, keys)
	}

	tbl, err := st.Get("M1_PI_10kHz_1000rpm_res")
	if err != nil {
		t.Fatalf("imported result missing: %v", err)
	}
	if w, ok := tbl.Column("load.w"); !ok || len(w) != 2 {
		t.Errorf("imported table lost its columns: %+v", tbl)
	}
}

func TestRunBindsDerivedQuantities(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	cfg.Sim.System.Controllers = []string{"PI"}
	cfg.Sim.System.HILFreqKHz = []float64{10}
	cfg.Sim.System.SpeedRPM = []float64{1000}
	cfg.Sim.System.EncoderBits = 12

	var model string
	r := NewRunner(st, discardLogger())
	r.run = func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		// The generated model only exists while the compiler runs.
		data, err := os.ReadFile(filepath.Join(cmd.Dir, "Temp_M1_PI_10kHz_1000rpm.mo"))
		if err != nil {
			t.Fatalf("read generated model: %v", err)
		}
		model = string(data)
		return succeedingOMC(t)(ctx, cmd)
	}

	if _, err := r.Run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, want := range []string{
		"ts = 0.0001",                 // 1/(10 kHz * 1000)
		"poles = 8",
		"target = 104.71975511965977", // 1000 rpm in rad/s
		"enc = 4096",                  // 2^12
		`ctrl = "PI"`,
	} {
		if !strings.Contains(model, want) {
			t.Errorf("generated model missing %q:\n%s", want, model)
		}
	}
	if !strings.Contains(model, caseid.Nominal("M1")) {
		t.Errorf("generated model does not reference the nominal torque map:\n%s", model)
	}
}

func TestRunSkipsMotorWithoutNominal(t *testing.T) {
	cfg, st := testSetup(t, "M2")
	// M1 runs first but has no nominal torque map in the store.
	cfg.Motors = append([]config.Motor{{ID: "M1", Poles: 8}}, cfg.Motors...)

	r := NewRunner(st, discardLogger())
	r.run = succeedingOMC(t)

	summary, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(summary.MotorsSkipped) != 1 || summary.MotorsSkipped[0] != "M1" {
		t.Errorf("skipped = %v, want [M1]", summary.MotorsSkipped)
	}
	if keys, _ := st.ListByPrefix("M1_PI"); len(keys) != 0 {
		t.Errorf("skipped motor must produce no system entries, got %v", keys)
	}
	if summary.CasesCompleted != 4 {
		t.Errorf("other motor should run its 4 cases, got %d", summary.CasesCompleted)
	}
}

func TestRunCompilerMissingIsFatal(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	calls := 0
	r := NewRunner(st, discardLogger())
	r.run = func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		calls++
		return toolrun.Result{Outcome: toolrun.NotFound}
	}

	_, err := r.Run(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected fatal error when compiler is missing")
	}
	if calls != 1 {
		t.Errorf("batch should stop after the first missing-compiler failure, got %d calls", calls)
	}
}

func TestRunNonZeroExitSkipsCase(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	r := NewRunner(st, discardLogger())
	calls := 0
	r.run = func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		calls++
		if calls == 1 {
			return toolrun.Result{Outcome: toolrun.NonZeroExit, ExitCode: 1, Stderr: "translation error"}
		}
		return succeedingOMC(t)(ctx, cmd)
	}

	summary, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.CasesFailed != 1 || summary.CasesCompleted != 3 {
		t.Errorf("failed/completed = %d/%d, want 1/3", summary.CasesFailed, summary.CasesCompleted)
	}
}

func TestRunTimeoutSkipsCase(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	r := NewRunner(st, discardLogger())
	calls := 0
	r.run = func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		calls++
		if calls == 1 {
			return toolrun.Result{Outcome: toolrun.TimedOut}
		}
		return succeedingOMC(t)(ctx, cmd)
	}

	summary, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.CasesFailed != 1 || summary.CasesCompleted != 3 {
		t.Errorf("failed/completed = %d/%d, want 1/3", summary.CasesFailed, summary.CasesCompleted)
	}
}

func TestRunMissingResultFileFailsCase(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	r := NewRunner(st, discardLogger())
	r.run = func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		return toolrun.Result{Outcome: toolrun.Success} // claims success, writes nothing
	}

	summary, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.CasesCompleted != 0 || summary.CasesFailed != 4 {
		t.Errorf("completed/failed = %d/%d, want 0/4", summary.CasesCompleted, summary.CasesFailed)
	}
}

func TestRunCleansGeneratedFiles(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	r := NewRunner(st, discardLogger())
	calls := 0
	r.run = func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		calls++
		if calls%2 == 0 {
			return toolrun.Result{Outcome: toolrun.NonZeroExit, ExitCode: 1}
		}
		return succeedingOMC(t)(ctx, cmd)
	}

	if _, err := r.Run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	entries, err := os.ReadDir(cfg.Paths.Work)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "package.mo" {
			t.Errorf("work dir should only keep package.mo, found %s", e.Name())
		}
	}
}

func TestRunPackageManifestIdempotent(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	custom := "within; package EccentricityStudy \"customized\" end EccentricityStudy;\n"
	manifest := filepath.Join(cfg.Paths.Work, "package.mo")
	if err := os.WriteFile(manifest, []byte(custom), 0644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	r := NewRunner(st, discardLogger())
	r.run = succeedingOMC(t)
	if _, err := r.Run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if string(data) != custom {
		t.Error("existing package.mo was overwritten")
	}
}

func TestRunRejectsTemplateWithUnknownField(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	if err := os.WriteFile(cfg.Paths.ModelTemplate, []byte("x = {made_up_field};"), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	calls := 0
	r := NewRunner(st, discardLogger())
	r.run = func(ctx context.Context, cmd toolrun.Cmd) toolrun.Result {
		calls++
		return toolrun.Result{Outcome: toolrun.Success}
	}

	if _, err := r.Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for template with unknown placeholder")
	}
	if calls != 0 {
		t.Errorf("no case should run with a bad template, got %d calls", calls)
	}
}

func TestRunMissingTemplateFails(t *testing.T) {
	cfg, st := testSetup(t, "M1")
	cfg.Paths.ModelTemplate = filepath.Join(t.TempDir(), "absent.template")

	r := NewRunner(st, discardLogger())
	if _, err := r.Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing model template")
	}
}
