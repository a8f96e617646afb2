package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solmag/spinchain/internal/field"
	"github.com/solmag/spinchain/internal/integrate"
	"github.com/solmag/spinchain/internal/relax"
	"github.com/solmag/spinchain/internal/spin"
	"github.com/solmag/spinchain/internal/track"
)

const (
	DefaultN        = 200
	DefaultJ        = 1.0
	DefaultD        = 0.25
	DefaultDa       = -0.10
	DefaultAlpha    = 0.05
	DefaultGamma    = 1.0
	DefaultDuration = 200.0
)

type Config struct {
	Lattice     LatticeConfig   `yaml:"lattice"`
	Physics     PhysicsConfig   `yaml:"physics"`
	Pulse       PulseConfig     `yaml:"pulse"`
	Integration IntegrateConfig `yaml:"integration"`
	Relaxation  RelaxConfig     `yaml:"relaxation"`
	Tracking    TrackConfig     `yaml:"tracking"`
	Sweep       SweepConfig     `yaml:"sweep"`
}

type LatticeConfig struct {
	N int `yaml:"n"`
	// Initial is one of "ferromagnetic", "spiral", "random".
	Initial string `yaml:"initial"`
	Turns   int    `yaml:"turns"` // spiral turns
	Seed    int64  `yaml:"seed"`  // random initial state / sweeps
}

type PhysicsConfig struct {
	J     float64 `yaml:"j"`
	D     float64 `yaml:"d"`
	Da    float64 `yaml:"da"`
	Alpha float64 `yaml:"alpha"`
	Gamma float64 `yaml:"gamma"`
	Hz    float64 `yaml:"hz"`
}

type PulseConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Amplitude float64 `yaml:"amplitude"`
	Sigma     float64 `yaml:"sigma"`
	Tau       float64 `yaml:"tau"`
	Center    int     `yaml:"center"`
	Time      float64 `yaml:"time"`
}

type IntegrateConfig struct {
	Duration    float64 `yaml:"duration"`
	SampleEvery float64 `yaml:"sample_every"`
	Tolerance   float64 `yaml:"tolerance"`
	InitialDt   float64 `yaml:"initial_dt"`
	MinDt       float64 `yaml:"min_dt"`
	MaxDt       float64 `yaml:"max_dt"`
	MaxSteps    int     `yaml:"max_steps"`
}

type RelaxConfig struct {
	StepSize  float64 `yaml:"step_size"`
	EnergyTol float64 `yaml:"energy_tol"`
	MaxIters  int     `yaml:"max_iters"`
}

type TrackConfig struct {
	CoreThreshold float64 `yaml:"core_threshold"`
	FitStart      float64 `yaml:"fit_start"`
	FitEnd        float64 `yaml:"fit_end"`
}

type SweepConfig struct {
	Alphas   []float64 `yaml:"alphas"`
	Fields   []float64 `yaml:"fields"`
	DValues  []float64 `yaml:"d_values"`
	DaValues []float64 `yaml:"da_values"`
	Workers  int       `yaml:"workers"`
}

func DefaultConfig() *Config {
	ic := integrate.DefaultConfig()
	rc := relax.DefaultConfig()
	tc := track.DefaultConfig()
	return &Config{
		Lattice: LatticeConfig{N: DefaultN, Initial: "ferromagnetic", Turns: 5, Seed: 1},
		Physics: PhysicsConfig{
			J: DefaultJ, D: DefaultD, Da: DefaultDa,
			Alpha: DefaultAlpha, Gamma: DefaultGamma, Hz: -0.010,
		},
		Pulse: PulseConfig{
			Enabled:   true,
			Amplitude: -10.0,
			Sigma:     3.0,
			Tau:       0.5,
			Center:    DefaultN / 2,
			Time:      2.0,
		},
		Integration: IntegrateConfig{
			Duration:    DefaultDuration,
			SampleEvery: ic.SampleEvery,
			Tolerance:   ic.Tol,
			InitialDt:   ic.InitialDt,
			MinDt:       ic.MinDt,
			MaxDt:       ic.MaxDt,
			MaxSteps:    ic.MaxSteps,
		},
		Relaxation: RelaxConfig{StepSize: rc.StepSize, EnergyTol: rc.EnergyTol, MaxIters: rc.MaxIters},
		Tracking:   TrackConfig{CoreThreshold: tc.CoreThreshold, FitStart: tc.TStart, FitEnd: tc.TEnd},
		Sweep: SweepConfig{
			Alphas: Linspace(0.01, 0.20, 20),
			Fields: Linspace(-0.02, 0.02, 5),
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

// Validate checks the boundary contract before anything reaches the
// numerical core.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	switch c.Lattice.Initial {
	case "", "ferromagnetic", "spiral", "random":
	default:
		return fmt.Errorf("%w: unknown initial state %q", spin.ErrConfiguration, c.Lattice.Initial)
	}
	if c.Integration.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", spin.ErrConfiguration)
	}
	if c.Pulse.Enabled && (c.Pulse.Center < 0 || c.Pulse.Center >= c.Lattice.N) {
		return fmt.Errorf("%w: pulse center %d outside lattice", spin.ErrConfiguration, c.Pulse.Center)
	}
	return nil
}

// Params assembles the immutable parameter record for one run.
func (c *Config) Params() spin.Params {
	return spin.Params{
		N:     c.Lattice.N,
		J:     c.Physics.J,
		D:     c.Physics.D,
		Da:    c.Physics.Da,
		Alpha: c.Physics.Alpha,
		Gamma: c.Physics.Gamma,
		Hz:    c.Physics.Hz,
	}
}

func (c *Config) IntegrateConfig() integrate.Config {
	return integrate.Config{
		Duration:    c.Integration.Duration,
		SampleEvery: c.Integration.SampleEvery,
		Tol:         c.Integration.Tolerance,
		InitialDt:   c.Integration.InitialDt,
		MinDt:       c.Integration.MinDt,
		MaxDt:       c.Integration.MaxDt,
		MaxSteps:    c.Integration.MaxSteps,
	}
}

func (c *Config) RelaxConfig() relax.Config {
	return relax.Config{
		StepSize:  c.Relaxation.StepSize,
		EnergyTol: c.Relaxation.EnergyTol,
		MaxIters:  c.Relaxation.MaxIters,
	}
}

func (c *Config) TrackConfig() track.Config {
	return track.Config{
		CoreThreshold: c.Tracking.CoreThreshold,
		TStart:        c.Tracking.FitStart,
		TEnd:          c.Tracking.FitEnd,
	}
}

func (c *Config) PulseParams() (field.Pulse, bool) {
	if !c.Pulse.Enabled {
		return field.Pulse{}, false
	}
	return field.Pulse{
		Amplitude: c.Pulse.Amplitude,
		Sigma:     c.Pulse.Sigma,
		Tau:       c.Pulse.Tau,
		Center:    c.Pulse.Center,
		Time:      c.Pulse.Time,
	}, true
}

// Linspace returns count evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, count int) []float64 {
	if count <= 1 {
		return []float64{lo}
	}
	out := make([]float64, count)
	step := (hi - lo) / float64(count-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
