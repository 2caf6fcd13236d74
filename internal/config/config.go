// Package config loads the tankwatch server configuration from YAML with
// environment overrides for the settings that differ per deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort              = 8080
	DefaultTable             = "tankwatch-webhooks"
	DefaultRegion            = "us-east-1"
	DefaultRedisAddr         = "localhost:6379"
	DefaultDispatchTimeout   = 10 * time.Second
	DefaultReconcileInterval = 5 * time.Minute
)

// Config is the root of config.yaml.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	DynamoDB     DynamoDBConfig     `yaml:"dynamodb"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Integrations IntegrationsConfig `yaml:"integrations"`
	Reconciler   ReconcilerConfig   `yaml:"reconciler"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DynamoDBConfig struct {
	Table string `yaml:"table"`
	// Endpoint points at DynamoDB Local; empty means the AWS default.
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig lists the bearer tokens accepted on the API and the owner each
// one maps to. Tokens themselves live in the environment.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

type TokenConfig struct {
	Owner    string `yaml:"owner"`
	TokenEnv string `yaml:"token_env"`
}

type DispatchConfig struct {
	// Timeout bounds each webhook attempt independently.
	Timeout time.Duration `yaml:"timeout"`
}

type IntegrationsConfig struct {
	SlingFlow SlingFlowConfig `yaml:"slingflow"`
	SophiaAI  SophiaAIConfig  `yaml:"sophia_ai"`
}

type SlingFlowConfig struct {
	// URL is used for slingflow registrations that do not carry their own.
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type SophiaAIConfig struct {
	// ChatURL is the conversational endpoint behind /api/sophia/chat.
	ChatURL   string `yaml:"chat_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type ReconcilerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// TokenOwners resolves the configured tokens from the environment. Entries
// whose variable is unset are skipped.
func (a AuthConfig) TokenOwners() map[string]string {
	out := make(map[string]string, len(a.Tokens))
	for _, t := range a.Tokens {
		if v := os.Getenv(t.TokenEnv); v != "" {
			out[v] = t.Owner
		}
	}
	return out
}

// APIKey returns the SlingFlow key resolved from the environment.
func (s SlingFlowConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// APIKey returns the Sophia AI key resolved from the environment.
func (s SophiaAIConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// Load reads path (if non-empty), fills defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:     ServerConfig{Port: DefaultPort},
		DynamoDB:   DynamoDBConfig{Table: DefaultTable, Region: DefaultRegion},
		Redis:      RedisConfig{Addr: DefaultRedisAddr},
		Dispatch:   DispatchConfig{Timeout: DefaultDispatchTimeout},
		Reconciler: ReconcilerConfig{Interval: DefaultReconcileInterval},
	}
}

func applyEnv(cfg *Config) error {
	envString("DYNAMODB_TABLE", &cfg.DynamoDB.Table)
	envString("DYNAMODB_ENDPOINT", &cfg.DynamoDB.Endpoint)
	envString("AWS_REGION", &cfg.DynamoDB.Region)
	envString("REDIS_ADDR", &cfg.Redis.Addr)
	envString("SLINGFLOW_URL", &cfg.Integrations.SlingFlow.URL)
	envString("SOPHIA_CHAT_URL", &cfg.Integrations.SophiaAI.ChatURL)
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT %q: %w", v, err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("DISPATCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DISPATCH_TIMEOUT %q: %w", v, err)
		}
		cfg.Dispatch.Timeout = d
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if cfg.DynamoDB.Table == "" {
		return fmt.Errorf("dynamodb.table is required")
	}
	if cfg.Dispatch.Timeout <= 0 {
		return fmt.Errorf("dispatch.timeout must be positive")
	}
	if cfg.Reconciler.Interval < 0 {
		return fmt.Errorf("reconciler.interval must not be negative")
	}
	seen := make(map[string]bool)
	for i, t := range cfg.Auth.Tokens {
		if t.Owner == "" || t.TokenEnv == "" {
			return fmt.Errorf("auth.tokens[%d] needs owner and token_env", i)
		}
		if seen[t.TokenEnv] {
			return fmt.Errorf("auth.tokens[%d]: token_env %s listed twice", i, t.TokenEnv)
		}
		seen[t.TokenEnv] = true
	}
	return nil
}
