// Package config provides configuration loading and access for the
// decision core. Defaults are embedded; a YAML file can override them.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all model parameters.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Damage    DamageConfig    `yaml:"damage"`
	Behavior  BehaviorConfig  `yaml:"behavior"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`
	Body      BodyConfig      `yaml:"body"`
}

// ModelConfig holds the physiological model constants.
type ModelConfig struct {
	MinDist       float64 `yaml:"min_dist"`        // Readings below this rescale to 0
	MaxDist       float64 `yaml:"max_dist"`        // Readings above this are clamped
	PeriodUnits   float64 `yaml:"period_units"`    // Divisor for speed estimates
	CyclePeriodMs int     `yaml:"cycle_period_ms"` // Wall-clock control period
	EnergyDecay   float64 `yaml:"energy_decay"`
	TegumentDecay float64 `yaml:"tegument_decay"`
	EnergyCue     float64 `yaml:"energy_cue"`
	TegumentCue   float64 `yaml:"tegument_cue"`
	DamageFactor  float64 `yaml:"damage_factor"` // Integrity erosion per induced magnitude
	DiagEvery     uint64  `yaml:"diag_every"`    // Snapshot log cadence in cycles
}

// DamageConfig holds thresholds for the two damage heuristics.
type DamageConfig struct {
	SpeedDiffFraction  float64 `yaml:"speed_diff_fraction"`
	SpeedMeanFraction  float64 `yaml:"speed_mean_fraction"`
	ChannelSpeedMin    float64 `yaml:"channel_speed_min"`
	BodyRadiusCM       float64 `yaml:"body_radius_cm"`
	SpreadFraction     float64 `yaml:"spread_fraction"`
	SymmetricAdjacency bool    `yaml:"symmetric_adjacency"`
}

// BehaviorConfig holds dispatch parameters and the legacy policy hooks.
type BehaviorConfig struct {
	ApproachSpeed        float64    `yaml:"approach_speed"`
	RewardDelta          float64    `yaml:"reward_delta"`
	EatEligible          bool       `yaml:"eat_eligible"`
	GroomEligible        bool       `yaml:"groom_eligible"`
	GroomCreditsTegument bool       `yaml:"groom_credits_tegument"`
	GroomPhaseMs         int        `yaml:"groom_phase_ms"`
	AvoidMax             float64    `yaml:"avoid_max"`
	AvoidWeightsLeft     [8]float64 `yaml:"avoid_weights_left"`
	AvoidWeightsRight    [8]float64 `yaml:"avoid_weights_right"`
}

// TelemetryConfig controls CSV output and archive batching.
type TelemetryConfig struct {
	OutputDir  string `yaml:"output_dir"`
	FlushEvery int    `yaml:"flush_every"`
}

// APIConfig controls the read-only HTTP status API.
type APIConfig struct {
	Port int `yaml:"port"`
}

// BodyConfig controls the simulated body backend.
type BodyConfig struct {
	Seed           int64   `yaml:"seed"`
	NoiseFrequency float64 `yaml:"noise_frequency"`
	FlashMs        int     `yaml:"flash_ms"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Load returns the defaults overridden by the YAML file at path.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations the model cannot run with.
func (c *Config) Validate() error {
	if c.Model.MinDist < 0 || c.Model.MaxDist <= c.Model.MinDist {
		return fmt.Errorf("model: need 0 <= min_dist < max_dist, got [%g, %g]",
			c.Model.MinDist, c.Model.MaxDist)
	}
	if c.Model.PeriodUnits <= 0 {
		return fmt.Errorf("model: period_units must be positive, got %g", c.Model.PeriodUnits)
	}
	if c.Model.CyclePeriodMs <= 0 {
		return fmt.Errorf("model: cycle_period_ms must be positive, got %d", c.Model.CyclePeriodMs)
	}
	if c.Model.DamageFactor < 0 {
		return fmt.Errorf("model: damage_factor must not be negative, got %g", c.Model.DamageFactor)
	}
	if c.Damage.SpreadFraction <= 0 {
		return fmt.Errorf("damage: spread_fraction must be positive, got %g", c.Damage.SpreadFraction)
	}
	if c.Behavior.AvoidMax <= 0 {
		return fmt.Errorf("behavior: avoid_max must be positive, got %g", c.Behavior.AvoidMax)
	}
	if c.Telemetry.FlushEvery <= 0 {
		return fmt.Errorf("telemetry: flush_every must be positive, got %d", c.Telemetry.FlushEvery)
	}
	return nil
}
