package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultMaxRetries is the hard cap on dispatch attempts per queue entry.
// Once an entry has been dispatched this many times it is excluded from
// automatic retry for good.
const DefaultMaxRetries = 5

type Settings struct {
	Store         StoreSettings   `mapstructure:"store"`
	API           APISettings     `mapstructure:"api"`
	MaxRetries    int             `mapstructure:"max_retries" validate:"gte=0"`
	Trigger       TriggerSettings `mapstructure:"trigger"`
	Observability Observability   `mapstructure:"observability"`
}

func (c *Settings) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func LoadFromFile(filePath string) (*Settings, error) {

	env := getEnvWithDefaultLookup("ENVIRONMENT", "development")

	cfg := &Settings{}
	viper.SetConfigType("yaml")
	viper.SetConfigName("agent")
	viper.AddConfigPath(filePath) // path to config
	viper.AddConfigPath(".")      // current directory

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("No config file found or read error: %v (will rely on env)", err)
	}

	err := mergeConfig(filePath, "agent."+env)
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error merging %s config: %w", env, err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("store.type", "sqlite")
	viper.SetDefault("store.path", "opqueue.db")
	viper.SetDefault("api.type", "http")
	viper.SetDefault("max_retries", DefaultMaxRetries)
	viper.SetDefault("trigger.check_interval", "30s")
	viper.SetDefault("trigger.sync_interval", "5m")
}

func (c *Settings) LoadFromEnv() error {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SYNCAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // env vars like SYNCAGENT_STORE_TYPE

	// Bind environment variables explicitly to ensure they map correctly
	viper.BindEnv("store.type")
	viper.BindEnv("store.path")
	viper.BindEnv("store.dsn")
	viper.BindEnv("store.uri")
	viper.BindEnv("store.database")
	viper.BindEnv("store.collection")
	viper.BindEnv("api.type")
	viper.BindEnv("api.base_url")
	viper.BindEnv("api.url")
	viper.BindEnv("api.exchange")
	viper.BindEnv("max_retries")
	viper.BindEnv("trigger.health_url")
	viper.BindEnv("trigger.check_interval")
	viper.BindEnv("trigger.sync_interval")
	viper.BindEnv("observability.service_name")
	viper.BindEnv("observability.tracing_url")
	viper.BindEnv("observability.metrics_url")

	if err := viper.Unmarshal(&c); err != nil {
		return err
	}
	return nil
}

func mergeConfig(path string, name string) error {
	viper.SetConfigName(name)
	viper.AddConfigPath(path)
	err := viper.MergeInConfig()
	if err != nil {
		return err
	}
	return nil
}

func getEnvWithDefaultLookup(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
