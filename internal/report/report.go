// Package report renders a per-motor PDF study report from a Markdown
// template and the generated figures, converting through pandoc.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/avirtanen/eccsweep/internal/config"
	"github.com/avirtanen/eccsweep/internal/subst"
	"github.com/avirtanen/eccsweep/internal/toolrun"
)

const pandocExecutable = "pandoc"

// Generator drives one report pass over every configured motor.
type Generator struct {
	log *slog.Logger
	run func(context.Context, toolrun.Cmd) toolrun.Result
}

func NewGenerator(log *slog.Logger) *Generator {
	return &Generator{log: log, run: toolrun.Run}
}

// Generate writes <motor>_Eccentricity_Study.pdf into cfg.Paths.Report for
// each motor. A missing pandoc skips the whole stage with a warning, since
// the sweep results and figures are still useful without the PDF. A failed
// conversion skips only that motor.
func (g *Generator) Generate(ctx context.Context, cfg *config.Config) error {
	probe := g.run(ctx, toolrun.Cmd{Path: pandocExecutable, Args: []string{"--version"}})
	if probe.Outcome != toolrun.Success {
		g.log.Warn("pandoc unavailable, skipping report generation",
			"outcome", probe.Outcome.String())
		return nil
	}

	raw, err := os.ReadFile(cfg.Paths.ReportTemplate)
	if err != nil {
		return fmt.Errorf("report: read template: %w", err)
	}
	tpl, err := subst.Parse(string(raw))
	if err != nil {
		return fmt.Errorf("report: template %s: %w", cfg.Paths.ReportTemplate, err)
	}

	if err := os.MkdirAll(cfg.Paths.Report, 0755); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	for _, motor := range cfg.Motors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.reportOne(ctx, tpl, motor, cfg); err != nil {
			g.log.Error("report failed", "motor", motor.ID, "error", err)
			continue
		}
		g.log.Info("wrote report", "motor", motor.ID)
	}
	return nil
}

func (g *Generator) reportOne(ctx context.Context, tpl *subst.Template, motor config.Motor, cfg *config.Config) error {
	figs := cfg.Paths.Figs
	ripple := filepath.Join(figs, motor.ID+"_femm_ripple.png")
	campbell := filepath.Join(figs, motor.ID+"_campbell_placeholder.png")
	system := firstResponseFigure(figs, motor.ID)

	if system == "" {
		g.log.Warn("no system response figure for report", "motor", motor.ID)
	}
	for _, p := range []string{ripple, campbell} {
		if _, err := os.Stat(p); err != nil {
			g.log.Warn("figure missing, report will have a broken image", "path", p)
		}
	}

	vars := nameplate(motor)
	vars["motor_id"] = motor.ID
	vars["ripple_plot_path"] = relTo(cfg.Paths.Report, ripple)
	vars["system_response_plot_path"] = relTo(cfg.Paths.Report, system)
	vars["campbell_plot_path"] = relTo(cfg.Paths.Report, campbell)

	content, err := tpl.Render(vars)
	if err != nil {
		return err
	}

	mdName := "temp_" + motor.ID + "_report.md"
	mdPath := filepath.Join(cfg.Paths.Report, mdName)
	if err := os.WriteFile(mdPath, []byte(content), 0644); err != nil {
		return err
	}
	defer os.Remove(mdPath)

	pdfName := motor.ID + "_Eccentricity_Study.pdf"
	res := g.run(ctx, toolrun.Cmd{
		Path: pandocExecutable,
		Args: []string{mdName, "--from", "markdown", "--standalone", "-o", pdfName},
		Dir:  cfg.Paths.Report,
	})
	if res.Outcome != toolrun.Success {
		return fmt.Errorf("report: pandoc %s (exit %d): %s",
			res.Outcome.String(), res.ExitCode, res.Stderr)
	}
	return nil
}

// firstResponseFigure picks the representative system response figure for
// the report, or "" when none was generated.
func firstResponseFigure(figsDir, motorID string) string {
	matches, err := filepath.Glob(filepath.Join(figsDir, motorID+"_*_response.png"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// relTo rewrites path relative to dir with forward slashes, so image
// references resolve when pandoc runs inside the report directory.
func relTo(dir, path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// nameplate exposes the motor parameters to the template under their
// configuration key names.
func nameplate(m config.Motor) map[string]string {
	return map[string]string{
		"poles":           strconv.Itoa(m.Poles),
		"rated_torque_Nm": strconv.FormatFloat(m.RatedTorqueNm, 'g', -1, 64),
		"rated_speed_rpm": strconv.FormatFloat(m.RatedSpeedRPM, 'g', -1, 64),
		"mass_kg":         strconv.FormatFloat(m.MassKg, 'g', -1, 64),
	}
}
