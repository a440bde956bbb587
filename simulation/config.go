package simulation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/gsclock/datarecording"
	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/cascade"
	"github.com/sarchlab/gsclock/sim/clock"
)

// DefaultStartTime is the date a simulation starts at unless configured.
const DefaultStartTime = "1444-11-11-00"

// Config is the file form of a simulation setup.
type Config struct {
	Calendar        calendar.Spec  `yaml:"calendar"`
	StartTime       string         `yaml:"start_time"`
	MaxTicksPerStep int            `yaml:"max_ticks_per_step"`
	HoursPerSecond  float64        `yaml:"hours_per_second"`
	Speed           int            `yaml:"speed"`
	Paused          bool           `yaml:"paused"`
	Cascade         cascade.Config `yaml:"cascade"`

	// BucketCount is the number of yearly buckets. Zero means one per day
	// of the year.
	BucketCount int `yaml:"bucket_count"`

	Recording *datarecording.RecorderConfig `yaml:"recording"`
	Monitor   MonitorConfig                 `yaml:"monitor"`
}

// MonitorConfig controls the web monitor.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// DefaultConfig returns the configuration MakeBuilder starts from.
func DefaultConfig() Config {
	return Config{
		Calendar:        calendar.DefaultSpec(),
		StartTime:       DefaultStartTime,
		MaxTicksPerStep: clock.DefaultMaxTicksPerStep,
		HoursPerSecond:  1,
		Speed:           1,
		Cascade:         cascade.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file. Fields missing from the file keep their
// DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("simulation: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("simulation: parsing %s: %w", path, err)
	}

	return cfg, nil
}
