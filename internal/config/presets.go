package config

import "sort"

// Presets are named study configurations selectable from the CLI.
// Each preset is a complete config; path settings follow the defaults.
var Presets = map[string]func() *Config{
	"standard": DefaultConfig,
	"quick": func() *Config {
		cfg := DefaultConfig()
		cfg.Sim.Geometry = GeometryErrors{
			StaticEccMM:  []float64{0.0, 0.1},
			DynamicEccMM: []float64{0.0},
			TiltDeg:      []float64{0.0},
		}
		cfg.Sim.FEMM.SweepStepElecDeg = 5.0
		cfg.Sim.System.Controllers = []string{"PI"}
		cfg.Sim.System.HILFreqKHz = []float64{10}
		cfg.Sim.System.SpeedRPM = []float64{1000}
		cfg.Sim.System.SimTimeS = 0.5
		return cfg
	},
	"fine": func() *Config {
		cfg := DefaultConfig()
		cfg.Sim.Geometry = GeometryErrors{
			StaticEccMM:  []float64{0.0, 0.05, 0.1, 0.15, 0.2},
			DynamicEccMM: []float64{0.0, 0.05, 0.1},
			TiltDeg:      []float64{0.0, 0.25, 0.5},
		}
		cfg.Sim.FEMM.SweepStepElecDeg = 0.5
		return cfg
	},
}

func GetPreset(name string) *Config {
	mk, ok := Presets[name]
	if !ok {
		return nil
	}
	return mk()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
