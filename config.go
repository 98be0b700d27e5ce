// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config sizes a Kernel.
type Config struct {
	MaxTasks        int    `envconfig:"MAX_TASKS" default:"64" yaml:"max_tasks"`
	MaxPorts        int    `envconfig:"MAX_PORTS" default:"256" yaml:"max_ports"`
	ShuttlesPerTask int    `envconfig:"SHUTTLES_PER_TASK" default:"32" yaml:"shuttles_per_task"`
	HandlesPerTask  int    `envconfig:"HANDLES_PER_TASK" default:"64" yaml:"handles_per_task"`
	CompletionRing  int    `envconfig:"COMPLETION_RING" default:"64" yaml:"completion_ring"`
	Scheduler       string `envconfig:"SCHEDULER" default:"signal" yaml:"scheduler"`

	Log     LogConfig     `envconfig:"LOG" yaml:"log"`
	Metrics MetricsConfig `envconfig:"METRICS" yaml:"metrics"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"DEVELOPMENT" default:"false" yaml:"development"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"ENABLED" default:"false" yaml:"enabled"`
	Namespace string `envconfig:"NAMESPACE" default:"libos" yaml:"namespace"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxTasks:        64,
		MaxPorts:        256,
		ShuttlesPerTask: 32,
		HandlesPerTask:  64,
		CompletionRing:  64,
		Scheduler:       SchedulerSignal,
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "libos",
		},
	}
}

// LoadConfig loads configuration from LIBOS_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("LIBOS", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile loads a YAML configuration file. Keys missing from
// the file keep their default values.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks table sizes against the handle encoding.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"max_tasks", c.MaxTasks},
		{"max_ports", c.MaxPorts},
		{"shuttles_per_task", c.ShuttlesPerTask},
		{"handles_per_task", c.HandlesPerTask},
		{"completion_ring", c.CompletionRing},
	} {
		if f.v <= 0 || f.v > maxSlots {
			return fmt.Errorf("config: %s must be in [1, %d], got %d", f.name, maxSlots, f.v)
		}
	}
	switch c.Scheduler {
	case SchedulerBackoff, SchedulerSignal:
	default:
		return fmt.Errorf("config: unknown scheduler %q", c.Scheduler)
	}
	return nil
}
