// Package config provides configuration management using Viper
package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogLevel represents the logging level for the service
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Environment variable names shared with the harness, which sets them on
// the spawned service process.
const (
	WorkersEnv  = "STARCAT_WORKERS"
	IDLimitEnv  = "STARCAT_ID_LIMIT"
	MaxDelayEnv = "STARCAT_MAX_DELAY_MS"
	PortEnv     = "STARCAT_PORT"
)

// Config holds all configuration parameters for the starcat service
type Config struct {
	// Application settings
	AppName  string   `mapstructure:"appname"`
	AppPort  string   `mapstructure:"appport"`
	LogLevel LogLevel `mapstructure:"loglevel"`

	// Request handling settings
	Workers    int `mapstructure:"workers"`
	IDLimit    int `mapstructure:"idlimit"`
	MaxDelayMs int `mapstructure:"maxdelayms"`

	// Shutdown settings
	ShutdownTimeoutSeconds int `mapstructure:"shutdowntimeoutseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the service configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "starcat")
		v.SetDefault("appport", "3000")
		v.SetDefault("loglevel", string(LogLevelInfo))
		v.SetDefault("workers", 2)
		v.SetDefault("idlimit", 100)
		v.SetDefault("maxdelayms", 0)
		v.SetDefault("shutdowntimeoutseconds", 10)

		v.BindEnv("appname", "STARCAT_APP_NAME")
		v.BindEnv("appport", PortEnv)
		v.BindEnv("loglevel", "STARCAT_LOG_LEVEL")
		v.BindEnv("workers", WorkersEnv)
		v.BindEnv("idlimit", IDLimitEnv)
		v.BindEnv("maxdelayms", MaxDelayEnv)
		v.BindEnv("shutdowntimeoutseconds", "STARCAT_SHUTDOWN_TIMEOUT_SECONDS")

		c := &Config{}
		if err := v.Unmarshal(c); err != nil {
			panic("config: unable to decode configuration: " + err.Error())
		}

		// Negative knobs mean "disabled", not an error.
		if c.IDLimit < 0 {
			c.IDLimit = 0
		}
		if c.MaxDelayMs < 0 {
			c.MaxDelayMs = 0
		}
		if c.Workers < 1 {
			c.Workers = 1
		}

		cfg = c
	})
	return cfg
}

// MaxDelay returns the artificial per-request delay ceiling.
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown grace period.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
