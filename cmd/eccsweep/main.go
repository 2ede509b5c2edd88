package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/avirtanen/eccsweep/internal/analysis"
	"github.com/avirtanen/eccsweep/internal/caseid"
	"github.com/avirtanen/eccsweep/internal/config"
	"github.com/avirtanen/eccsweep/internal/femm"
	"github.com/avirtanen/eccsweep/internal/logging"
	"github.com/avirtanen/eccsweep/internal/modelica"
	"github.com/avirtanen/eccsweep/internal/plots"
	"github.com/avirtanen/eccsweep/internal/progress"
	"github.com/avirtanen/eccsweep/internal/report"
	"github.com/avirtanen/eccsweep/internal/results"
	"github.com/avirtanen/eccsweep/internal/tui"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	live       bool
	preset     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eccsweep",
		Short: "electric motor eccentricity simulation sweeps",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "params.yaml", "study configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the full study: electromagnetic sweep, system simulations, figures, reports",
		RunE:  runAll,
	}
	runCmd.Flags().BoolVar(&live, "live", false, "show the live batch monitor")

	femmCmd := &cobra.Command{
		Use:   "femm",
		Short: "run the electromagnetic torque sweep stage",
		RunE:  runFEMM,
	}
	femmCmd.Flags().BoolVar(&live, "live", false, "show the live batch monitor")

	systemCmd := &cobra.Command{
		Use:   "system",
		Short: "run the system simulation stage",
		RunE:  runSystem,
	}
	systemCmd.Flags().BoolVar(&live, "live", false, "show the live batch monitor")

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "generate figures from stored results",
		RunE:  runPlots,
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "generate per-motor PDF reports",
		RunE:  runReports,
	}

	listCmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "list stored results",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listResults,
	}

	showCmd := &cobra.Command{
		Use:   "show [key]",
		Short: "plot one stored result in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  showResult,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset configuration")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available configuration presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, femmCmd, systemCmd, plotCmd, reportCmd, listCmd, showCmd, initCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	return logging.New(logLevel, logFormat, w)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w (init-config writes a starter file)", configFile, err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*results.Store, error) {
	st := results.New(cfg.Paths.Results)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

// withMonitor runs a batch plainly, or behind the live view when --live is
// set. In live mode the batch goroutine owns the event channel and closes
// it at the end; the channel is drained even when the user quits the view
// early so runners never block on a send.
func withMonitor(batch func(log *slog.Logger, events chan<- progress.Event) error) error {
	if !live {
		return batch(newLogger(os.Stderr), nil)
	}

	events := make(chan progress.Event, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(events)
		errc <- batch(newLogger(io.Discard), events)
	}()

	if err := tui.Run(events); err != nil {
		fmt.Fprintln(os.Stderr, "monitor error:", err)
	}
	for range events {
	}
	return <-errc
}

func runAll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	return withMonitor(func(log *slog.Logger, events chan<- progress.Event) error {
		if err := femmStage(cfg, st, log, events); err != nil {
			return err
		}
		if err := systemStage(cfg, st, log, events); err != nil {
			return err
		}
		if err := plots.Generate(cfg, st, log); err != nil {
			return err
		}
		return report.NewGenerator(log).Generate(context.Background(), cfg)
	})
}

func runFEMM(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	return withMonitor(func(log *slog.Logger, events chan<- progress.Event) error {
		return femmStage(cfg, st, log, events)
	})
}

func runSystem(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	return withMonitor(func(log *slog.Logger, events chan<- progress.Event) error {
		return systemStage(cfg, st, log, events)
	})
}

func femmStage(cfg *config.Config, st *results.Store, log *slog.Logger, events chan<- progress.Event) error {
	eng := femm.NewCLIEngine(cfg.Sim.FEMM.Executable)
	r := femm.NewRunner(eng, st, log)
	if events != nil {
		r.Notify(events)
	}
	summary, err := r.Run(context.Background(), cfg)
	if err != nil {
		return err
	}
	if events == nil {
		printSummary("electromagnetic sweep", summary.CasesCompleted, summary.CasesFailed,
			summary.MotorsSkipped, summary.Elapsed)
	}
	return nil
}

func systemStage(cfg *config.Config, st *results.Store, log *slog.Logger, events chan<- progress.Event) error {
	r := modelica.NewRunner(st, log)
	if events != nil {
		r.Notify(events)
	}
	summary, err := r.Run(context.Background(), cfg)
	if err != nil {
		return err
	}
	if events == nil {
		printSummary("system simulations", summary.CasesCompleted, summary.CasesFailed,
			summary.MotorsSkipped, summary.Elapsed)
	}
	return nil
}

func printSummary(stage string, completed, failed int, skipped []string, elapsed time.Duration) {
	fmt.Printf("%s: %d completed, %d failed", stage, completed, failed)
	if len(skipped) > 0 {
		fmt.Printf(", skipped motors: %v", skipped)
	}
	fmt.Printf(" (%v)\n", elapsed.Round(time.Millisecond))
}

func runPlots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	return plots.Generate(cfg, st, newLogger(os.Stderr))
}

func runReports(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return report.NewGenerator(newLogger(os.Stderr)).Generate(context.Background(), cfg)
}

func listResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	keys, err := st.ListByPrefix(prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("no results found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tKIND\tSAMPLES")
	for _, key := range keys {
		kind := "system"
		if caseid.IsGeometry(key) {
			kind = "geometry"
		}
		samples := 0
		if tbl, err := st.Get(key); err == nil {
			samples = len(tbl.Rows)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", key, kind, samples)
	}
	return w.Flush()
}

func showResult(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	key := args[0]
	tbl, err := st.Get(key)
	if err != nil {
		return err
	}

	fmt.Printf("key: %s\n", key)
	if caseid.IsGeometry(key) {
		fmt.Printf("case: %s\n", caseid.GeometryLabel(key))
	}
	fmt.Printf("samples: %d\n\n", len(tbl.Rows))

	data, name := displayColumn(tbl)
	if len(data) == 0 {
		return fmt.Errorf("no plottable column in %s", key)
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(name),
	)
	fmt.Println(graph)
	fmt.Println()

	stats := analysis.Describe(data)
	fmt.Printf("min:  %.6f\n", stats.Min)
	fmt.Printf("max:  %.6f\n", stats.Max)
	fmt.Printf("mean: %.6f\n", stats.Mean)
	fmt.Printf("p-p:  %.6f\n", stats.PeakToPeak)
	if caseid.IsGeometry(key) {
		fmt.Printf("ripple: %.2f%%\n", analysis.Ripple(data))
		if h := analysis.DominantHarmonic(data); h.Order > 0 {
			fmt.Printf("dominant harmonic: order %d (%.4f Nm)\n", h.Order, h.Magnitude)
		}
	}
	return nil
}

// displayColumn picks what show plots: the torque column for sweep curves,
// otherwise the first signal that is not the time base.
func displayColumn(tbl *results.Table) ([]float64, string) {
	if col, ok := tbl.Column(femm.ColTorque); ok && len(col) > 0 {
		return col, femm.ColTorque
	}
	for _, name := range tbl.Header {
		if name == "time" {
			continue
		}
		if col, ok := tbl.Column(name); ok && len(col) > 0 {
			return col, name
		}
	}
	return nil, ""
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) == 1 {
		path = args[0]
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
