package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Hard limits the host accepts for a view distance, in chunks.
const (
	MinViewDistance = 2
	MaxViewDistance = 32
)

// Config holds the application configuration.
type Config struct {
	ViewDistance ViewDistanceConfig `yaml:"view_distance"`
	Policy       PolicyConfig       `yaml:"policy"`
	Ticker       TickerConfig       `yaml:"ticker"`
	Log          LogConfig          `yaml:"log"`
	DB           DBConfig           `yaml:"db"`
	Server       ServerConfig       `yaml:"server"`
	Mock         MockHostConfig     `yaml:"mock"`
}

// ViewDistanceConfig holds the bounds and step sizes of the controller.
type ViewDistanceConfig struct {
	Minimum      int `yaml:"minimum"`
	Maximum      int `yaml:"maximum"`
	Desired      int `yaml:"desired"`
	IncreaseStep int `yaml:"increase_step"`
	DecreaseStep int `yaml:"decrease_step"`
}

// PolicyConfig holds the decision cadence, the TPS thresholds and the
// staleness sweep settings.
type PolicyConfig struct {
	DecisionInterval  Duration `yaml:"decision_interval"`
	EmergencyTPS      float64  `yaml:"emergency_tps"`
	LowerNowTPS       float64  `yaml:"lower_now_tps"`
	LowerGracefulTPS  float64  `yaml:"lower_graceful_tps"`
	RaiseTPS          float64  `yaml:"raise_tps"`
	SweepPeriodTicks  int64    `yaml:"sweep_period_ticks"`
	StalenessTicks    int64    `yaml:"staleness_ticks"`
	MovementThreshold float64  `yaml:"movement_threshold"`
}

// TickerConfig holds the scheduler cadence.
type TickerConfig struct {
	TickInterval Duration `yaml:"tick_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// MockHostConfig holds settings for the simulated host.
type MockHostConfig struct {
	Enabled        bool     `yaml:"enabled"`
	InitialClients int      `yaml:"initial_clients"`
	MaxClients     int      `yaml:"max_clients"`
	JoinChance     float64  `yaml:"join_chance"`
	QuitChance     float64  `yaml:"quit_chance"`
	TeleportChance float64  `yaml:"teleport_chance"`
	MenuChance     float64  `yaml:"menu_chance"`
	IdleChance     float64  `yaml:"idle_chance"`
	ChunkCost      Duration `yaml:"chunk_cost"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ViewDistance: ViewDistanceConfig{
			Minimum:      MinViewDistance,
			Maximum:      MaxViewDistance,
			Desired:      32,
			IncreaseStep: 4,
			DecreaseStep: 4,
		},
		Policy: PolicyConfig{
			DecisionInterval:  Duration(5 * time.Minute),
			EmergencyTPS:      15,
			LowerNowTPS:       17,
			LowerGracefulTPS:  19,
			RaiseTPS:          19.9,
			SweepPeriodTicks:  10,
			StalenessTicks:    200, // 10s at 20 TPS
			MovementThreshold: 0.5,
		},
		Ticker: TickerConfig{
			TickInterval: Duration(50 * time.Millisecond),
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:      "./data/dynview.db",
			Retention: Duration(30 * Day),
		},
		Server: ServerConfig{
			Address: "localhost:1921",
		},
		Mock: MockHostConfig{
			Enabled:        true,
			InitialClients: 8,
			MaxClients:     24,
			JoinChance:     0.002,
			QuitChance:     0.0005,
			TeleportChance: 0.0005,
			MenuChance:     0.001,
			IdleChance:     0.3,
			ChunkCost:      Duration(200 * time.Nanosecond),
		},
	}
}

// Validate checks the controller bounds and policy thresholds.
func (c *Config) Validate() error {
	var errs []error
	vd := c.ViewDistance
	if vd.Minimum < MinViewDistance {
		errs = append(errs, fmt.Errorf("view_distance.minimum must be >= %d, got %d", MinViewDistance, vd.Minimum))
	}
	if vd.Maximum > MaxViewDistance || vd.Maximum < vd.Minimum {
		errs = append(errs, fmt.Errorf("view_distance.maximum must be in [minimum, %d], got %d", MaxViewDistance, vd.Maximum))
	}
	if vd.Desired < vd.Minimum || vd.Desired > vd.Maximum {
		errs = append(errs, fmt.Errorf("view_distance.desired must be in [%d, %d], got %d", vd.Minimum, vd.Maximum, vd.Desired))
	}
	if vd.IncreaseStep <= 0 || vd.DecreaseStep <= 0 {
		errs = append(errs, errors.New("view_distance step sizes must be positive"))
	}

	p := c.Policy
	if p.DecisionInterval <= 0 {
		errs = append(errs, errors.New("policy.decision_interval must be positive"))
	}
	if !(p.EmergencyTPS <= p.LowerNowTPS && p.LowerNowTPS <= p.LowerGracefulTPS && p.LowerGracefulTPS <= p.RaiseTPS) {
		errs = append(errs, errors.New("policy thresholds must be ordered: emergency <= lower_now <= lower_graceful <= raise"))
	}
	if p.SweepPeriodTicks <= 0 || p.StalenessTicks <= 0 {
		errs = append(errs, errors.New("policy sweep_period_ticks and staleness_ticks must be positive"))
	}
	if c.Ticker.TickInterval <= 0 {
		errs = append(errs, errors.New("ticker.tick_interval must be positive"))
	}
	return errors.Join(errs...)
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Existing files are merged over the defaults but never written back, so
// user formatting and comments survive.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# dynview Configuration
# ---------------------
# View distances are in chunks, ticks are server ticks (20 per second nominal).
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reTPS := regexp.MustCompile(`(?m)^(\s+)emergency_tps:`)
	data = reTPS.ReplaceAll(data, []byte("${1}# Five minute average TPS thresholds, checked in this order\n${1}emergency_tps:"))

	reStale := regexp.MustCompile(`(?m)^(\s+)staleness_ticks:`)
	data = reStale.ReplaceAll(data, []byte("${1}# Motionless clients are reconciled after this many ticks\n${1}staleness_ticks:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
