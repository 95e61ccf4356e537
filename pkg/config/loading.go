package config

import (
	"os"
	"strconv"

	"taskpool/pkg/helper/errors"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads a Config from an optional YAML file, then applies
// environment variable overrides, then validates. An empty configPath
// skips the file step and loads defaults plus environment overrides only.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := NewDefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, errors.NotFoundf("configuration file not found: %s", configPath)
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read configuration file")
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse configuration file")
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromEnv overlays TASKPOOL_* environment variables onto cfg.
func loadFromEnv(cfg *Config) error {
	intVars := map[string]*int{
		"TASKPOOL_LOW":                  &cfg.Low,
		"TASKPOOL_HIGH":                 &cfg.High,
		"TASKPOOL_SUPERVISOR_TICK_US":   &cfg.SupervisorTickUS,
		"TASKPOOL_WORKER_IDLE_SLEEP_US": &cfg.WorkerIdleSleepUS,
	}

	for env, field := range intVars {
		value, ok := os.LookupEnv(env)
		if !ok || value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.InvalidInputf("%s: invalid integer %q", env, value)
		}
		*field = n
	}

	return nil
}
