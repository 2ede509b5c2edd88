package femm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeSolverScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake solver is a shell script")
	}
	path := filepath.Join(t.TempDir(), "fakesolver")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

const echoSolver = `while read cmd rest; do
  case "$cmd" in
    blockintegral) echo "ok 1.25" ;;
    close) echo ok; exit 0 ;;
    *) echo ok ;;
  esac
done
`

func TestCLIEngineSessionExchange(t *testing.T) {
	eng := NewCLIEngine(writeSolverScript(t, echoSolver))

	sess, err := eng.Open(context.Background(), "cad/M1.dxf")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sess.Close()

	if err := sess.Select(1); err != nil {
		t.Errorf("select failed: %v", err)
	}
	if err := sess.Translate(0.1, 0); err != nil {
		t.Errorf("translate failed: %v", err)
	}
	if err := sess.Rotate(0, 0, 45); err != nil {
		t.Errorf("rotate failed: %v", err)
	}
	if err := sess.Solve(); err != nil {
		t.Errorf("solve failed: %v", err)
	}
	if err := sess.LoadSolution(); err != nil {
		t.Errorf("load solution failed: %v", err)
	}

	torque, err := sess.Integral(1)
	if err != nil {
		t.Fatalf("integral failed: %v", err)
	}
	if torque != 1.25 {
		t.Errorf("torque = %f, want 1.25", torque)
	}

	if err := sess.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestCLIEngineSolverError(t *testing.T) {
	script := `while read cmd rest; do
  case "$cmd" in
    analyze) echo "err mesh generation failed" ;;
    close) echo ok; exit 0 ;;
    *) echo ok ;;
  esac
done
`
	eng := NewCLIEngine(writeSolverScript(t, script))

	sess, err := eng.Open(context.Background(), "cad/M1.dxf")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer sess.Close()

	err = sess.Solve()
	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if se.Op != "analyze" {
		t.Errorf("op = %q, want analyze", se.Op)
	}
	if !strings.Contains(se.Error(), "mesh generation failed") {
		t.Errorf("error %q lost the solver message", se.Error())
	}
}

func TestCLIEngineSolverCrashOnOpen(t *testing.T) {
	eng := NewCLIEngine(writeSolverScript(t, `echo "boot failure" >&2; exit 1`))

	_, err := eng.Open(context.Background(), "cad/M1.dxf")
	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if se.Op != "open" {
		t.Errorf("op = %q, want open", se.Op)
	}
}

func TestCLIEngineMissingBinary(t *testing.T) {
	eng := NewCLIEngine(filepath.Join(t.TempDir(), "absent-solver"))

	_, err := eng.Open(context.Background(), "cad/M1.dxf")
	if err == nil {
		t.Fatal("expected error for missing solver binary")
	}
}
