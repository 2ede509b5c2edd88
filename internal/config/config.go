package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSweepStepElecDeg = 1.0
	DefaultRotorGroup       = 1
	DefaultTorqueRegion     = 1
	DefaultEncoderBits      = 12
	DefaultSimTimeS         = 2.0
	DefaultToolTimeoutS     = 300.0
)

type Config struct {
	Paths  Paths     `yaml:"paths"`
	Motors []Motor   `yaml:"motors"`
	Sim    SimParams `yaml:"simulation_params"`
}

type Paths struct {
	CAD            string `yaml:"cad"`
	Results        string `yaml:"results"`
	Figs           string `yaml:"figs"`
	Report         string `yaml:"report"`
	Work           string `yaml:"work"`
	ModelTemplate  string `yaml:"modelica_model_template"`
	ReportTemplate string `yaml:"report_template"`
}

type Motor struct {
	ID            string  `yaml:"id"`
	Poles         int     `yaml:"poles"`
	RatedTorqueNm float64 `yaml:"rated_torque_Nm,omitempty"`
	RatedSpeedRPM float64 `yaml:"rated_speed_rpm,omitempty"`
	MassKg        float64 `yaml:"mass_kg,omitempty"`
}

type SimParams struct {
	Geometry GeometryErrors `yaml:"geometry_errors"`
	FEMM     FEMMParams     `yaml:"femm"`
	System   SystemParams   `yaml:"system"`
}

type GeometryErrors struct {
	StaticEccMM  []float64 `yaml:"static_ecc_mm"`
	DynamicEccMM []float64 `yaml:"dynamic_ecc_mm"`
	TiltDeg      []float64 `yaml:"tilt_deg"`
}

type FEMMParams struct {
	SweepStepElecDeg float64 `yaml:"sweep_step_elec_deg"`
	RotorGroup       int     `yaml:"rotor_group"`
	TorqueRegion     int     `yaml:"torque_region"`
	Executable       string  `yaml:"executable"`
	TimeoutS         float64 `yaml:"timeout_s"`
}

type SystemParams struct {
	Controllers []string  `yaml:"controllers"`
	HILFreqKHz  []float64 `yaml:"hil_freq_kHz"`
	SpeedRPM    []float64 `yaml:"speed_rpm"`
	EncoderBits int       `yaml:"encoder_bits"`
	SimTimeS    float64   `yaml:"sim_time_s"`
	OMCPath     string    `yaml:"omc_path"`
	TimeoutS    float64   `yaml:"timeout_s"`
}

func DefaultConfig() *Config {
	return &Config{
		Paths: Paths{
			CAD:            "cad",
			Results:        "results",
			Figs:           "figs",
			Report:         "report",
			Work:           "work",
			ModelTemplate:  "modelica/motor_system.mo.template",
			ReportTemplate: "report/report_template.md",
		},
		Motors: []Motor{
			{ID: "BLDC-8P", Poles: 8, RatedTorqueNm: 1.2, RatedSpeedRPM: 4000, MassKg: 0.9},
		},
		Sim: SimParams{
			Geometry: GeometryErrors{
				StaticEccMM:  []float64{0.0, 0.1, 0.2},
				DynamicEccMM: []float64{0.0, 0.1},
				TiltDeg:      []float64{0.0, 0.5},
			},
			FEMM: FEMMParams{
				SweepStepElecDeg: DefaultSweepStepElecDeg,
				RotorGroup:       DefaultRotorGroup,
				TorqueRegion:     DefaultTorqueRegion,
				Executable:       "femmcli",
				TimeoutS:         DefaultToolTimeoutS,
			},
			System: SystemParams{
				Controllers: []string{"PI", "FOC"},
				HILFreqKHz:  []float64{10, 20},
				SpeedRPM:    []float64{1000, 3000},
				EncoderBits: DefaultEncoderBits,
				SimTimeS:    DefaultSimTimeS,
				OMCPath:     "omc",
				TimeoutS:    DefaultToolTimeoutS,
			},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Motor IDs and controller names embed into result-store keys, where '_'
// separates key fields. The allowed charset therefore excludes '_'.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]*$`)

func (c *Config) Validate() error {
	if len(c.Motors) == 0 {
		return fmt.Errorf("config: no motors defined")
	}
	seen := make(map[string]bool, len(c.Motors))
	for _, m := range c.Motors {
		if !namePattern.MatchString(m.ID) {
			return fmt.Errorf("config: invalid motor id %q (allowed: letters, digits, '.', '-')", m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("config: duplicate motor id %q", m.ID)
		}
		seen[m.ID] = true
		if m.Poles <= 0 || m.Poles%2 != 0 {
			return fmt.Errorf("config: motor %s: poles must be a positive even number, got %d", m.ID, m.Poles)
		}
	}

	g := c.Sim.Geometry
	if len(g.StaticEccMM) == 0 || len(g.DynamicEccMM) == 0 || len(g.TiltDeg) == 0 {
		return fmt.Errorf("config: geometry_errors dimensions must each have at least one value")
	}

	f := c.Sim.FEMM
	if f.SweepStepElecDeg <= 0 {
		return fmt.Errorf("config: femm.sweep_step_elec_deg must be positive, got %g", f.SweepStepElecDeg)
	}
	if f.Executable == "" {
		return fmt.Errorf("config: femm.executable is required")
	}
	if f.TimeoutS <= 0 {
		return fmt.Errorf("config: femm.timeout_s must be positive, got %g", f.TimeoutS)
	}

	s := c.Sim.System
	if len(s.Controllers) == 0 {
		return fmt.Errorf("config: system.controllers must have at least one entry")
	}
	for _, ctrl := range s.Controllers {
		if !namePattern.MatchString(ctrl) {
			return fmt.Errorf("config: invalid controller name %q (allowed: letters, digits, '.', '-')", ctrl)
		}
	}
	if len(s.HILFreqKHz) == 0 || len(s.SpeedRPM) == 0 {
		return fmt.Errorf("config: system.hil_freq_kHz and system.speed_rpm must each have at least one value")
	}
	for _, f := range s.HILFreqKHz {
		if f <= 0 {
			return fmt.Errorf("config: system.hil_freq_kHz values must be positive, got %g", f)
		}
	}
	for _, rpm := range s.SpeedRPM {
		if rpm <= 0 {
			return fmt.Errorf("config: system.speed_rpm values must be positive, got %g", rpm)
		}
	}
	if s.EncoderBits <= 0 || s.EncoderBits > 32 {
		return fmt.Errorf("config: system.encoder_bits must be in 1..32, got %d", s.EncoderBits)
	}
	if s.SimTimeS <= 0 {
		return fmt.Errorf("config: system.sim_time_s must be positive, got %g", s.SimTimeS)
	}
	if s.OMCPath == "" {
		return fmt.Errorf("config: system.omc_path is required")
	}
	if s.TimeoutS <= 0 {
		return fmt.Errorf("config: system.timeout_s must be positive, got %g", s.TimeoutS)
	}
	return nil
}

// MotorByID returns the motor with the given id, or false when absent.
func (c *Config) MotorByID(id string) (Motor, bool) {
	for _, m := range c.Motors {
		if m.ID == id {
			return m, true
		}
	}
	return Motor{}, false
}
