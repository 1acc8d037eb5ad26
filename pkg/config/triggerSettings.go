package config

import "time"

// TriggerSettings configures the connectivity trigger: when to probe the
// controller and how often to run an unconditional sync pass.
type TriggerSettings struct {
	HealthURL     string        `mapstructure:"health_url"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
}
