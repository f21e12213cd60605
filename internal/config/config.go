// Package config implements the bootstrap and full configuration model of
// spec.md §6: a small bootstrap document selects where the full config
// lives (a local file or, in future, a database), and the full config
// carries every recognized server key. Detection of YAML vs TOML is by
// file extension; env-var references in provider credentials and headers
// are resolved at load time.
package config

import (
	"fmt"
	"time"
)

// ProviderType is the wire dialect a configured provider speaks.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
)

// ProviderConfig is one entry of the `providers.<name>` map (spec.md §6).
type ProviderConfig struct {
	Type        ProviderType      `yaml:"type" toml:"type" json:"type"`
	APIKey      string            `yaml:"api_key" toml:"api_key" json:"api_key"`
	BaseURL     string            `yaml:"base_url,omitempty" toml:"base_url,omitempty" json:"base_url,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty" json:"headers,omitempty"`
	TimeoutSecs int               `yaml:"timeout_secs,omitempty" toml:"timeout_secs,omitempty" json:"timeout_secs,omitempty"`
}

// Timeout returns the configured timeout, defaulting to 30s when unset.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// RouteRuleConfig is one entry of `routing.rules[]` (spec.md §6). Matcher
// is `"always"` or `"model_pattern"`; when it's `"model_pattern"`,
// ModelPattern carries the regex. YAML/TOML don't share a clean sum-type
// encoding for spec.md's inline-object matcher form, so the field sits
// directly on the rule instead of a nested matcher object.
type RouteRuleConfig struct {
	Name         string   `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Priority     uint32   `yaml:"priority" toml:"priority" json:"priority"`
	Matcher      string   `yaml:"matcher" toml:"matcher" json:"matcher"`
	ModelPattern string   `yaml:"model_pattern,omitempty" toml:"model_pattern,omitempty" json:"model_pattern,omitempty"`
	Primary      string   `yaml:"primary" toml:"primary" json:"primary"`
	Fallbacks    []string `yaml:"fallbacks,omitempty" toml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
}

// BypassConfig configures the pass-through path of spec.md §4.I.
type BypassConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Provider string `yaml:"provider,omitempty" toml:"provider,omitempty" json:"provider,omitempty"`
}

// HealthConfig mirrors health.Thresholds' fields for config unmarshalling.
type HealthConfig struct {
	HealthyThreshold    float64 `yaml:"healthy_threshold,omitempty" toml:"healthy_threshold,omitempty" json:"healthy_threshold,omitempty"`
	UnhealthyThreshold  float64 `yaml:"unhealthy_threshold,omitempty" toml:"unhealthy_threshold,omitempty" json:"unhealthy_threshold,omitempty"`
	FailureWindowSecs   int     `yaml:"failure_window_secs,omitempty" toml:"failure_window_secs,omitempty" json:"failure_window_secs,omitempty"`
	MinRequests         int     `yaml:"min_requests,omitempty" toml:"min_requests,omitempty" json:"min_requests,omitempty"`
}

// CircuitBreakerConfig mirrors breaker.Config's fields for config
// unmarshalling.
type CircuitBreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold,omitempty" toml:"failure_threshold,omitempty" json:"failure_threshold,omitempty"`
	SuccessThreshold int `yaml:"success_threshold,omitempty" toml:"success_threshold,omitempty" json:"success_threshold,omitempty"`
	TimeoutSecs      int `yaml:"timeout_secs,omitempty" toml:"timeout_secs,omitempty" json:"timeout_secs,omitempty"`
}

// NotificationConfig configures the Notification Injector (spec.md §4.H).
type NotificationConfig struct {
	Enabled        bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	DefaultMessage string `yaml:"default_message,omitempty" toml:"default_message,omitempty" json:"default_message,omitempty"`
}

// Config is the full, resolved configuration document (spec.md §6's
// "Server configuration keys").
type Config struct {
	Host          string                    `yaml:"host" toml:"host" json:"host"`
	Port          int                       `yaml:"port" toml:"port" json:"port"`
	APIDialect    ProviderType              `yaml:"api_dialect" toml:"api_dialect" json:"api_dialect"`
	GatewayAPIKey string                    `yaml:"gateway_api_key,omitempty" toml:"gateway_api_key,omitempty" json:"gateway_api_key,omitempty"`
	Providers     map[string]ProviderConfig `yaml:"providers" toml:"providers" json:"providers"`
	Routing       struct {
		Rules []RouteRuleConfig `yaml:"rules" toml:"rules" json:"rules"`
	} `yaml:"routing" toml:"routing" json:"routing"`
	Bypass         BypassConfig         `yaml:"bypass" toml:"bypass" json:"bypass"`
	Health         HealthConfig         `yaml:"health" toml:"health" json:"health"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" toml:"circuit_breaker" json:"circuit_breaker"`
	Notification   NotificationConfig   `yaml:"notification" toml:"notification" json:"notification"`
	CORS           struct {
		Enabled        bool     `yaml:"enabled" toml:"enabled" json:"enabled"`
		AllowedOrigins []string `yaml:"allowed_origins,omitempty" toml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`
	} `yaml:"cors" toml:"cors" json:"cors"`
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty" toml:"max_body_bytes,omitempty" json:"max_body_bytes,omitempty"`
}

// DefaultPort matches spec.md §6's stated default.
const DefaultPort = 8081

// ApplyDefaults fills in every zero-valued field spec.md §3/§6 gives a
// default for. Called after unmarshalling, before validation.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.APIDialect == "" {
		c.APIDialect = ProviderOpenAI
	}
	if c.Health.HealthyThreshold == 0 {
		c.Health.HealthyThreshold = 0.95
	}
	if c.Health.UnhealthyThreshold == 0 {
		c.Health.UnhealthyThreshold = 0.5
	}
	if c.Health.FailureWindowSecs == 0 {
		c.Health.FailureWindowSecs = 60
	}
	if c.Health.MinRequests == 0 {
		c.Health.MinRequests = 5
	}
	if c.CircuitBreaker.FailureThreshold == 0 {
		c.CircuitBreaker.FailureThreshold = 5
	}
	if c.CircuitBreaker.SuccessThreshold == 0 {
		c.CircuitBreaker.SuccessThreshold = 2
	}
	if c.CircuitBreaker.TimeoutSecs == 0 {
		c.CircuitBreaker.TimeoutSecs = 30
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 10 << 20
	}
}

// Validate checks the recognized-key constraints spec.md §6 and §8 imply.
// It does not reach out to providers; it only checks internal
// consistency of the document itself.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.APIDialect != ProviderOpenAI && c.APIDialect != ProviderAnthropic {
		return fmt.Errorf("config: api_dialect %q must be %q or %q", c.APIDialect, ProviderOpenAI, ProviderAnthropic)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider must be configured")
	}
	for name, p := range c.Providers {
		if p.Type != ProviderOpenAI && p.Type != ProviderAnthropic {
			return fmt.Errorf("config: providers.%s.type %q must be %q or %q", name, p.Type, ProviderOpenAI, ProviderAnthropic)
		}
	}
	for _, rule := range c.Routing.Rules {
		if rule.Matcher != "always" && rule.Matcher != "model_pattern" {
			return fmt.Errorf("config: routing rule %q has unrecognized matcher %q", rule.Name, rule.Matcher)
		}
		if rule.Matcher == "model_pattern" && rule.ModelPattern == "" {
			return fmt.Errorf("config: routing rule %q uses model_pattern but has no pattern", rule.Name)
		}
		if _, ok := c.Providers[rule.Primary]; !ok {
			return fmt.Errorf("config: routing rule %q primary %q is not a configured provider", rule.Name, rule.Primary)
		}
		for _, fb := range rule.Fallbacks {
			if _, ok := c.Providers[fb]; !ok {
				return fmt.Errorf("config: routing rule %q fallback %q is not a configured provider", rule.Name, fb)
			}
		}
	}
	if c.Bypass.Enabled {
		if _, ok := c.Providers[c.Bypass.Provider]; !ok {
			return fmt.Errorf("config: bypass.provider %q is not a configured provider", c.Bypass.Provider)
		}
	}
	return nil
}
