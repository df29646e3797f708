// Package config loads gateway configuration from an optional config.yaml
// plus ITERA_-prefixed environment variables; env values override the file.
// Nested keys map with double underscores: ITERA_SERVER__PORT=8080.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Cache        CacheConfig        `koanf:"cache"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	AI           AIConfig           `koanf:"ai"`
	Escalation   EscalationConfig   `koanf:"escalation"`
	Session      SessionConfig      `koanf:"session"`
	Transcript   TranscriptConfig   `koanf:"transcript"`
	Mail         MailConfig         `koanf:"mail"`
}

type ServerConfig struct {
	Port                  int      `koanf:"port"`
	AllowedOrigins        []string `koanf:"allowed_origins"`
	RequestTimeoutSeconds int      `koanf:"request_timeout_seconds"`
}

type CacheConfig struct {
	MaxEntries        int `koanf:"max_entries"`
	DefaultTTLMinutes int `koanf:"default_ttl_minutes"`

	// TTLOverrideMinutes maps intent names to per-intent TTLs, layered on
	// top of the built-in policy table.
	TTLOverrideMinutes map[string]int `koanf:"ttl_override_minutes"`
}

type OrchestratorConfig struct {
	URL       string `koanf:"url"`
	TimeoutMS int    `koanf:"timeout_ms"`
}

type AIConfig struct {
	APIKey    string  `koanf:"api_key"`
	BaseURL   string  `koanf:"base_url"`
	Model     string  `koanf:"model"`
	MaxTokens int     `koanf:"max_tokens"`
	CostLimit float64 `koanf:"cost_limit"`
	TimeoutMS int     `koanf:"timeout_ms"`
}

type EscalationConfig struct {
	WebhookURL     string `koanf:"webhook_url"`
	ScoreThreshold int    `koanf:"score_threshold"`
	RetryPreset    string `koanf:"retry_preset"` // aggressive, standard, conservative, persistent
}

type SessionConfig struct {
	// Store selects the driver: memory (default) or redis.
	Store             string      `koanf:"store"`
	TTLMinutes        int         `koanf:"ttl_minutes"`
	RateWindowMinutes int         `koanf:"rate_window_minutes"`
	RateThreshold     int         `koanf:"rate_threshold"`
	Redis             RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type TranscriptConfig struct {
	// Path to the sqlite analytics file; empty disables recording.
	Path string `koanf:"path"`
}

type MailConfig struct {
	APIKey        string `koanf:"api_key"`
	FromAddress   string `koanf:"from_address"`
	AdminAddress  string `koanf:"admin_address"`
	RetryPreset   string `koanf:"retry_preset"`
	MaxPerWindow  int    `koanf:"max_per_window"`
	WindowMinutes int    `koanf:"window_minutes"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config
	if err := k.Load(env.Provider("ITERA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ITERA_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Secrets in yaml may reference env vars as ${VAR_NAME}
	cfg.AI.APIKey = substituteEnvVars(cfg.AI.APIKey)
	cfg.Mail.APIKey = substituteEnvVars(cfg.Mail.APIKey)
	cfg.Escalation.WebhookURL = substituteEnvVars(cfg.Escalation.WebhookURL)
	cfg.Session.Redis.Password = substituteEnvVars(cfg.Session.Redis.Password)

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                    8080,
		"server.request_timeout_seconds": 30,
		"cache.max_entries":              500,
		"cache.default_ttl_minutes":      60,
		"orchestrator.timeout_ms":        3000,
		"ai.model":                       "gpt-4o-mini",
		"ai.max_tokens":                  150,
		"ai.cost_limit":                  0.10,
		"ai.timeout_ms":                  2000,
		"escalation.retry_preset":        "standard",
		"escalation.score_threshold":     70,
		"session.store":                  "memory",
		"session.ttl_minutes":            60,
		"session.rate_window_minutes":    60,
		"session.rate_threshold":         60,
		"mail.retry_preset":              "standard",
		"mail.from_address":              "noreply@it-era.it",
		"mail.max_per_window":            5,
		"mail.window_minutes":            60,
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
