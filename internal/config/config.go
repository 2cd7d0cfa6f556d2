// Package config loads service settings from defaults, an optional config file,
// an optional .env file and the environment, in increasing priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ortelius/pdvd-depscan/database"
	"github.com/ortelius/pdvd-depscan/events"
	"github.com/ortelius/pdvd-depscan/osv"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// Records backends
const (
	BackendMemory = "memory"
	BackendArango = "arango"
)

// Config is the resolved service configuration
type Config struct {
	Port           string
	LogLevel       string
	OSV            osv.Config
	WaitTimeout    time.Duration
	FetchTimeout   time.Duration
	ScanInterval   time.Duration
	RecordsBackend string
	Arango         database.Config
	Kafka          events.Config
	SeedFile       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MS_PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OSV_API_URL", osv.DefaultAPIURL)
	v.SetDefault("OSV_ECOSYSTEM", "PyPI")
	v.SetDefault("OSV_HTTP_TIMEOUT", "30s")
	v.SetDefault("OSV_MAX_RETRY_ELAPSED", "30s")
	v.SetDefault("CACHE_WAIT_TIMEOUT", vulncache.DefaultWaitTimeout.String())
	v.SetDefault("CACHE_FETCH_TIMEOUT", vulncache.DefaultFetchTimeout.String())
	v.SetDefault("SCAN_INTERVAL", "1h")
	v.SetDefault("RECORDS_BACKEND", BackendMemory)
	v.SetDefault("ARANGO_HOST", "localhost")
	v.SetDefault("ARANGO_PORT", "8529")
	v.SetDefault("ARANGO_USER", "root")
	v.SetDefault("ARANGO_PASS", "")
	v.SetDefault("ARANGO_DB", "depscan")
	v.SetDefault("ARANGO_MAX_RETRY_ELAPSED", "2m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", events.DefaultTopic)
	v.SetDefault("KAFKA_API_KEY", "")
	v.SetDefault("KAFKA_API_SECRET", "")
	v.SetDefault("SEED_FILE", "")
}

// Load resolves the configuration. envFile is loaded when it exists; configFile, when
// non-empty, must be a readable YAML or JSON file with the same upper-case keys.
func Load(envFile, configFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	durations := map[string]*time.Duration{}
	cfg := Config{
		Port:           v.GetString("MS_PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		RecordsBackend: strings.ToLower(v.GetString("RECORDS_BACKEND")),
		SeedFile:       v.GetString("SEED_FILE"),
		OSV: osv.Config{
			APIURL:    v.GetString("OSV_API_URL"),
			Ecosystem: v.GetString("OSV_ECOSYSTEM"),
		},
		Arango: database.Config{
			User:     v.GetString("ARANGO_USER"),
			Password: v.GetString("ARANGO_PASS"),
			Database: v.GetString("ARANGO_DB"),
		},
		Kafka: events.Config{
			Brokers:   splitList(v.GetString("KAFKA_BROKERS")),
			Topic:     v.GetString("KAFKA_TOPIC"),
			APIKey:    v.GetString("KAFKA_API_KEY"),
			APISecret: v.GetString("KAFKA_API_SECRET"),
		},
	}

	cfg.Arango.URL = v.GetString("ARANGO_URL")
	if cfg.Arango.URL == "" {
		cfg.Arango.URL = "http://" + v.GetString("ARANGO_HOST") + ":" + v.GetString("ARANGO_PORT")
	}

	durations["OSV_HTTP_TIMEOUT"] = &cfg.OSV.HTTPTimeout
	durations["OSV_MAX_RETRY_ELAPSED"] = &cfg.OSV.MaxRetryElapsed
	durations["CACHE_WAIT_TIMEOUT"] = &cfg.WaitTimeout
	durations["CACHE_FETCH_TIMEOUT"] = &cfg.FetchTimeout
	durations["SCAN_INTERVAL"] = &cfg.ScanInterval
	durations["ARANGO_MAX_RETRY_ELAPSED"] = &cfg.Arango.MaxRetryElapsed

	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		*dst = d
	}

	switch cfg.RecordsBackend {
	case BackendMemory, BackendArango:
	default:
		return Config{}, fmt.Errorf("unknown RECORDS_BACKEND %q", cfg.RecordsBackend)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
