package plots

import (
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/avirtanen/eccsweep/internal/caseid"
	"github.com/avirtanen/eccsweep/internal/config"
	"github.com/avirtanen/eccsweep/internal/results"
	"github.com/avirtanen/eccsweep/internal/sweep"
)

func newTestStore(t *testing.T) *results.Store {
	t.Helper()
	st := results.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("store init: %v", err)
	}
	return st
}

func seedGeometry(t *testing.T, st *results.Store, motorID string, c sweep.GeometryCase, torque []float64) {
	t.Helper()
	rows := make([][]float64, len(torque))
	for i, v := range torque {
		rows[i] = []float64{float64(i) * 0.25, v}
	}
	err := st.Put(caseid.Geometry(motorID, c), &results.Table{
		Header: []string{"theta_deg", "torque_Nm"},
		Rows:   rows,
	})
	if err != nil {
		t.Fatalf("seed geometry case: %v", err)
	}
}

func seedSystem(t *testing.T, st *results.Store, key string, header []string, rows [][]float64) {
	t.Helper()
	if err := st.Put(key+"_res", &results.Table{Header: header, Rows: rows}); err != nil {
		t.Fatalf("seed system case: %v", err)
	}
}

func decodePNG(t *testing.T, path string) (width, height int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open figure: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("figure is not a valid PNG: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestRippleBarWritesChart(t *testing.T) {
	st := newTestStore(t)
	seedGeometry(t, st, "M1", sweep.GeometryCase{}, []float64{1.0, 1.1, 0.95, 1.05})
	seedGeometry(t, st, "M1", sweep.GeometryCase{StaticEccMM: 0.1}, []float64{1.0, 1.3, 0.8, 1.1})

	out := filepath.Join(t.TempDir(), "ripple.png")
	if err := RippleBar(st, "M1", out); err != nil {
		t.Fatalf("RippleBar: %v", err)
	}
	if w, h := decodePNG(t, out); w == 0 || h == 0 {
		t.Errorf("empty figure %dx%d", w, h)
	}
}

func TestRippleBarNoData(t *testing.T) {
	st := newTestStore(t)
	err := RippleBar(st, "M1", filepath.Join(t.TempDir(), "ripple.png"))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestRippleBarIgnoresOtherMotors(t *testing.T) {
	st := newTestStore(t)
	seedGeometry(t, st, "M2", sweep.GeometryCase{}, []float64{1, 1.2})

	err := RippleBar(st, "M1", filepath.Join(t.TempDir(), "ripple.png"))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData for motor without cases, got %v", err)
	}
}

func TestSystemResponseAnnotatesMissingSignals(t *testing.T) {
	st := newTestStore(t)
	// Only time and load.w exist; the torque and current rows must render
	// as annotations instead of failing.
	seedSystem(t, st, "M1_PI_10kHz_1000rpm",
		[]string{"time", "load.w"},
		[][]float64{{0, 0}, {0.1, 50}, {0.2, 95}, {0.3, 104}})

	out := filepath.Join(t.TempDir(), "response.png")
	if err := SystemResponse(st, "M1_PI_10kHz_1000rpm", out); err != nil {
		t.Fatalf("SystemResponse: %v", err)
	}
	decodePNG(t, out)
}

func TestSystemResponseMissingCase(t *testing.T) {
	st := newTestStore(t)
	err := SystemResponse(st, "M1_PI_10kHz_1000rpm", filepath.Join(t.TempDir(), "out.png"))
	if !errors.Is(err, results.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCampbellPlaceholder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "campbell.png")
	if err := CampbellPlaceholder(out); err != nil {
		t.Fatalf("CampbellPlaceholder: %v", err)
	}
	decodePNG(t, out)
}

func TestGenerateWritesPerMotorFigures(t *testing.T) {
	st := newTestStore(t)
	seedGeometry(t, st, "M1", sweep.GeometryCase{}, []float64{1.0, 1.1, 0.9})
	seedSystem(t, st, "M1_PI_10kHz_1000rpm",
		[]string{"time", "load.w"},
		[][]float64{{0, 0}, {0.1, 100}})

	cfg := config.DefaultConfig()
	cfg.Paths.Figs = t.TempDir()
	cfg.Motors = []config.Motor{{ID: "M1", Poles: 8}, {ID: "M2", Poles: 4}}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Generate(cfg, st, log); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, name := range []string{
		"M1_femm_ripple.png",
		"M1_PI_10kHz_1000rpm_response.png",
		"M1_campbell_placeholder.png",
		"M2_campbell_placeholder.png",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.Figs, name)); err != nil {
			t.Errorf("expected figure %s: %v", name, err)
		}
	}

	// M2 has no stored results, so only its placeholder may exist.
	if _, err := os.Stat(filepath.Join(cfg.Paths.Figs, "M2_femm_ripple.png")); err == nil {
		t.Error("ripple chart written for motor without results")
	}
}
