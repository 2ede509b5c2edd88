// Package plots renders the study figures from stored sweep results:
// a torque ripple bar chart per motor, a stacked system response plot
// for one representative simulation case, and a Campbell diagram
// placeholder until run-up analysis exists.
package plots

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/avirtanen/eccsweep/internal/analysis"
	"github.com/avirtanen/eccsweep/internal/caseid"
	"github.com/avirtanen/eccsweep/internal/config"
	"github.com/avirtanen/eccsweep/internal/femm"
	"github.com/avirtanen/eccsweep/internal/results"
)

// ErrNoData reports that the store holds nothing to plot for the request.
var ErrNoData = errors.New("plots: no data")

var (
	lineColor = color.RGBA{R: 42, G: 98, B: 166, A: 255}
	barColor  = color.RGBA{R: 64, G: 120, B: 188, A: 255}
)

// responseSignals are the rows of the system response figure. The shipped
// model template only emits load.w reliably; the torque and current signals
// appear once the Modelica model carries a full drive, so absent columns
// render as an annotation rather than failing the figure.
var responseSignals = []struct {
	title  string
	column string
	unit   string
}{
	{"Rotor Speed", "load.w", "rad/s"},
	{"Motor Torque", "m1.torque", "Nm"},
	{"Phase A Current", "inv.i_a", "A"},
}

// Generate writes every figure the stored results support into cfg.Paths.Figs.
// Figures that cannot be rendered are logged and skipped so one bad case
// does not starve the report stage of the rest.
func Generate(cfg *config.Config, store *results.Store, log *slog.Logger) error {
	if err := os.MkdirAll(cfg.Paths.Figs, 0755); err != nil {
		return fmt.Errorf("plots: %w", err)
	}

	for _, motor := range cfg.Motors {
		ripplePath := filepath.Join(cfg.Paths.Figs, motor.ID+"_femm_ripple.png")
		switch err := RippleBar(store, motor.ID, ripplePath); {
		case errors.Is(err, ErrNoData):
			log.Info("no sweep results, skipping ripple chart", "motor", motor.ID)
		case err != nil:
			log.Warn("ripple chart failed", "motor", motor.ID, "error", err)
		default:
			log.Info("wrote figure", "path", ripplePath)
		}

		if caseKey, ok := firstSystemCase(store, motor.ID); ok {
			respPath := filepath.Join(cfg.Paths.Figs, caseKey+"_response.png")
			if err := SystemResponse(store, caseKey, respPath); err != nil {
				log.Warn("system response plot failed", "case", caseKey, "error", err)
			} else {
				log.Info("wrote figure", "path", respPath)
			}
		} else {
			log.Info("no system results, skipping response plot", "motor", motor.ID)
		}

		campbellPath := filepath.Join(cfg.Paths.Figs, motor.ID+"_campbell_placeholder.png")
		if err := CampbellPlaceholder(campbellPath); err != nil {
			log.Warn("campbell placeholder failed", "motor", motor.ID, "error", err)
		} else {
			log.Info("wrote figure", "path", campbellPath)
		}
	}
	return nil
}

// firstSystemCase picks the representative simulation case for a motor:
// the first stored system result in key order.
func firstSystemCase(store *results.Store, motorID string) (string, bool) {
	keys, err := store.ListByPrefix(motorID + "_")
	if err != nil {
		return "", false
	}
	for _, k := range keys {
		if strings.HasSuffix(k, "_res") {
			return strings.TrimSuffix(k, "_res"), true
		}
	}
	return "", false
}

// RippleBar charts torque ripple across every stored geometry case of one
// motor. Returns ErrNoData when the store holds no usable curve.
func RippleBar(store *results.Store, motorID, outPath string) error {
	keys, err := store.ListByPrefix(motorID + "_static_")
	if err != nil {
		return err
	}

	var labels []string
	var vals plotter.Values
	for _, key := range keys {
		tbl, err := store.Get(key)
		if err != nil {
			continue
		}
		torque, ok := tbl.Column(femm.ColTorque)
		if !ok || len(torque) == 0 {
			continue
		}
		vals = append(vals, analysis.Ripple(torque))
		labels = append(labels, caseid.GeometryLabel(key))
	}
	if len(vals) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = "FEMM Torque Ripple Analysis for " + motorID
	p.X.Label.Text = "Geometric Error Combination"
	p.Y.Label.Text = "Torque Ripple [%]"
	style(p)

	bars, err := plotter.NewBarChart(vals, vg.Points(18))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = barColor
	p.Add(bars)
	p.NominalX(labels...)

	// Case labels are long, so slant them like the tick labels on a
	// crowded categorical axis.
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	return savePNG(p, 12, 7, outPath)
}

// SystemResponse plots the stacked signal rows for one simulation case.
// caseKey names the case without the result suffix.
func SystemResponse(store *results.Store, caseKey, outPath string) error {
	tbl, err := store.Get(caseKey + "_res")
	if err != nil {
		return err
	}
	tim, ok := tbl.Column("time")
	if !ok {
		return fmt.Errorf("plots: result %s has no time column", caseKey)
	}

	rows := make([][]*plot.Plot, len(responseSignals))
	for i, sig := range responseSignals {
		p := plot.New()
		p.Title.Text = sig.title
		p.Y.Label.Text = sig.unit
		style(p)

		if ys, ok := tbl.Column(sig.column); ok && len(ys) == len(tim) {
			ln, err := line(tim, ys)
			if err != nil {
				return err
			}
			p.Add(plotter.NewGrid(), ln)
		} else if err := annotate(p, fmt.Sprintf("%q not in results", sig.column)); err != nil {
			return err
		}
		if i == len(responseSignals)-1 {
			p.X.Label.Text = "Time [s]"
		}
		rows[i] = []*plot.Plot{p}
	}
	rows[0][0].Title.Text = "System Response: " + caseKey + "\n" + responseSignals[0].title

	return saveTiled(rows, 12, 10, outPath)
}

// CampbellPlaceholder writes the stand-in figure referenced by the report.
// A real Campbell diagram needs a run-up simulation and FFT post-processing
// that the study does not produce yet.
func CampbellPlaceholder(outPath string) error {
	p := plot.New()
	p.Title.Text = "Campbell Diagram (Placeholder)"
	style(p)
	p.HideAxes()
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	lines := []string{
		"Campbell diagram",
		"(requires run-up simulation",
		"and FFT post-processing)",
	}
	for i, text := range lines {
		if err := label(p, 0.5, 0.64-0.14*float64(i), text); err != nil {
			return err
		}
	}
	return savePNG(p, 8, 6, outPath)
}

func line(xs, ys []float64) (*plotter.Line, error) {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	ln, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	ln.LineStyle.Width = vg.Points(1.5)
	ln.Color = lineColor
	return ln, nil
}

// annotate centers a message in an otherwise empty subplot.
func annotate(p *plot.Plot, msg string) error {
	p.HideAxes()
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	return label(p, 0.5, 0.5, msg)
}

func label(p *plot.Plot, x, y float64, text string) error {
	lbl, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    []plotter.XY{{X: x, Y: y}},
		Labels: []string{text},
	})
	if err != nil {
		return err
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].XAlign = draw.XCenter
		lbl.TextStyle[i].Font.Size = vg.Points(13)
	}
	p.Add(lbl)
	return nil
}

func style(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(15)
	p.Title.Padding = vg.Points(6)
	p.X.Label.TextStyle.Font.Size = vg.Points(12)
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.X.Padding = vg.Points(6)
	p.Y.Padding = vg.Points(6)
}

// savePNG renders one plot to a PNG file, creating parent directories.
func savePNG(p *plot.Plot, widthIn, heightIn float64, outPath string) error {
	img := canvas(widthIn, heightIn)
	p.Draw(draw.New(img))
	return writePNG(img, outPath)
}

// saveTiled stacks single-column plot rows into one figure.
func saveTiled(rows [][]*plot.Plot, widthIn, heightIn float64, outPath string) error {
	img := canvas(widthIn, heightIn)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows: len(rows),
		Cols: 1,
		PadX: vg.Points(12),
		PadY: vg.Points(6),
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}
	return writePNG(img, outPath)
}

func canvas(widthIn, heightIn float64) *vgimg.Canvas {
	return vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(96),
	)
}

func writePNG(img *vgimg.Canvas, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
