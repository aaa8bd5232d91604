// Package config loads fgws's server configuration from environment
// variables (with an optional .env file for local development).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every knob fgwsd needs at startup: protocol identity,
// transport address, admission/resource limits, and the ambient
// logging/metrics/Kafka-ingest settings.
type Config struct {
	// Protocol identity (serverInfo payload).
	ServerName         string `env:"FGWS_NAME" envDefault:"fgws"`
	Capabilities        string `env:"FGWS_CAPABILITIES" envDefault:"clientPublish,parameters,parametersSubscribe,time,services,connectionGraph,assets"`
	SupportedEncodings  string `env:"FGWS_SUPPORTED_ENCODINGS" envDefault:"json"`

	// Transport.
	Addr string `env:"FGWS_ADDR" envDefault:":8765"`

	// Kafka ingest (optional reference producer adapter).
	KafkaBrokers  string `env:"FGWS_KAFKA_BROKERS" envDefault:""`
	KafkaTopics   string `env:"FGWS_KAFKA_TOPICS" envDefault:""`
	ConsumerGroup string `env:"FGWS_KAFKA_CONSUMER_GROUP" envDefault:"fgws"`

	// Capacity.
	MaxSessions   int `env:"FGWS_MAX_SESSIONS" envDefault:"2000"`
	MaxGoroutines int `env:"FGWS_MAX_GOROUTINES" envDefault:"4000"`

	// Resource safety thresholds.
	CPURejectThreshold float64 `env:"FGWS_CPU_REJECT_THRESHOLD" envDefault:"75.0"`
	MemoryLimit        int64   `env:"FGWS_MEMORY_LIMIT" envDefault:"536870912"`
	MetricsInterval    time.Duration `env:"FGWS_METRICS_INTERVAL" envDefault:"15s"`

	// Connection-attempt rate limiting.
	ConnRateLimitEnabled     bool    `env:"FGWS_CONN_RATE_LIMIT_ENABLED" envDefault:"true"`
	ConnRateLimitIPBurst     int     `env:"FGWS_CONN_RATE_LIMIT_IP_BURST" envDefault:"10"`
	ConnRateLimitIPRate      float64 `env:"FGWS_CONN_RATE_LIMIT_IP_RATE" envDefault:"1.0"`
	ConnRateLimitGlobalBurst int     `env:"FGWS_CONN_RATE_LIMIT_GLOBAL_BURST" envDefault:"300"`
	ConnRateLimitGlobalRate  float64 `env:"FGWS_CONN_RATE_LIMIT_GLOBAL_RATE" envDefault:"50.0"`

	// Per-session inbound message rate limiting.
	SessionRateLimitPerSec float64 `env:"FGWS_SESSION_RATE_LIMIT_PER_SEC" envDefault:"50"`
	SessionRateLimitBurst  int     `env:"FGWS_SESSION_RATE_LIMIT_BURST" envDefault:"200"`

	// Logging.
	LogLevel  string `env:"FGWS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FGWS_LOG_FORMAT" envDefault:"json"`

	Environment string `env:"FGWS_ENV" envDefault:"development"`
}

// CapabilityList splits Capabilities on commas, trimming whitespace and
// dropping empty entries.
func (c *Config) CapabilityList() []string {
	return splitNonEmpty(c.Capabilities)
}

// EncodingList splits SupportedEncodings the same way.
func (c *Config) EncodingList() []string {
	return splitNonEmpty(c.SupportedEncodings)
}

// KafkaBrokerList splits KafkaBrokers the same way.
func (c *Config) KafkaBrokerList() []string {
	return splitNonEmpty(c.KafkaBrokers)
}

// KafkaTopicList splits KafkaTopics the same way.
func (c *Config) KafkaTopicList() []string {
	return splitNonEmpty(c.KafkaTopics)
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from environment variables, optionally
// preceded by a local .env file (ignored if absent).
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("FGWS_ADDR is required")
	}
	if c.ServerName == "" {
		return fmt.Errorf("FGWS_NAME is required")
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("FGWS_MAX_SESSIONS must be > 0, got %d", c.MaxSessions)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("FGWS_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("FGWS_LOG_LEVEL must be one of debug,info,warn,error,fatal (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("FGWS_LOG_FORMAT must be one of json,pretty (got %q)", c.LogFormat)
	}

	for _, cap := range c.CapabilityList() {
		if !knownCapability(cap) {
			return fmt.Errorf("FGWS_CAPABILITIES: unknown capability %q", cap)
		}
	}
	return nil
}

func knownCapability(cap string) bool {
	switch cap {
	case "clientPublish", "parameters", "parametersSubscribe", "time", "services", "connectionGraph", "assets":
		return true
	default:
		return false
	}
}

// LogConfig emits the loaded configuration as a structured info event.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("name", c.ServerName).
		Strs("capabilities", c.CapabilityList()).
		Strs("supported_encodings", c.EncodingList()).
		Int("max_sessions", c.MaxSessions).
		Int("max_goroutines", c.MaxGoroutines).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Int64("memory_limit_mb", c.MemoryLimit/(1024*1024)).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
