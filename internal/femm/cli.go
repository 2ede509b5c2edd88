package femm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// CLIEngine runs the solver front end as one subprocess per session and
// drives it over a line protocol on stdio. Each request is a single line,
// answered by "ok", "ok <value>" or "err <message>":
//
//	open <quoted asset path>
//	selectgroup <n>
//	translate <dx> <dy>
//	rotate <cx> <cy> <deg>
//	analyze
//	loadsolution
//	blockintegral <region>
//	close
type CLIEngine struct {
	Executable string
	Args       []string
}

func NewCLIEngine(executable string, args ...string) *CLIEngine {
	return &CLIEngine{Executable: executable, Args: args}
}

func (e *CLIEngine) Open(ctx context.Context, assetPath string) (Session, error) {
	cmd := exec.CommandContext(ctx, e.Executable, e.Args...)

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, sessionErr("open", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, sessionErr("open", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, sessionErr("open", err)
	}

	s := &cliSession{proc: cmd, in: in, out: bufio.NewScanner(out), stderr: &stderr}
	if _, err := s.exchange("open", fmt.Sprintf("open %q", assetPath)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type cliSession struct {
	proc   *exec.Cmd
	in     io.WriteCloser
	out    *bufio.Scanner
	stderr *bytes.Buffer
	closed bool
}

func (s *cliSession) exchange(op, request string) (string, error) {
	if s.closed {
		return "", sessionErr(op, errors.New("session closed"))
	}
	if _, err := io.WriteString(s.in, request+"\n"); err != nil {
		return "", sessionErr(op, err)
	}
	if !s.out.Scan() {
		err := s.out.Err()
		if err == nil {
			err = fmt.Errorf("solver closed stream (stderr: %s)", strings.TrimSpace(s.stderr.String()))
		}
		return "", sessionErr(op, err)
	}

	line := strings.TrimSpace(s.out.Text())
	switch {
	case line == "ok":
		return "", nil
	case strings.HasPrefix(line, "ok "):
		return strings.TrimPrefix(line, "ok "), nil
	case strings.HasPrefix(line, "err "):
		return "", sessionErr(op, errors.New(strings.TrimPrefix(line, "err ")))
	default:
		return "", sessionErr(op, fmt.Errorf("unexpected response %q", line))
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *cliSession) Select(group int) error {
	_, err := s.exchange("selectgroup", fmt.Sprintf("selectgroup %d", group))
	return err
}

func (s *cliSession) Translate(dx, dy float64) error {
	_, err := s.exchange("translate", fmt.Sprintf("translate %s %s", num(dx), num(dy)))
	return err
}

func (s *cliSession) Rotate(cx, cy, angleDeg float64) error {
	_, err := s.exchange("rotate", fmt.Sprintf("rotate %s %s %s", num(cx), num(cy), num(angleDeg)))
	return err
}

func (s *cliSession) Solve() error {
	_, err := s.exchange("analyze", "analyze")
	return err
}

func (s *cliSession) LoadSolution() error {
	_, err := s.exchange("loadsolution", "loadsolution")
	return err
}

func (s *cliSession) Integral(region int) (float64, error) {
	resp, err := s.exchange("blockintegral", fmt.Sprintf("blockintegral %d", region))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, sessionErr("blockintegral", fmt.Errorf("bad integral value %q", resp))
	}
	return v, nil
}

// Close asks the solver to shut down and reaps the subprocess. The session
// context passed to Open kills the process if it will not exit.
func (s *cliSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	io.WriteString(s.in, "close\n")
	s.in.Close()
	return s.proc.Wait()
}
