package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// BootstrapKind selects where the full Config document lives (spec.md §6).
type BootstrapKind string

const (
	BootstrapFile     BootstrapKind = "file"
	BootstrapDatabase BootstrapKind = "database"
)

// Bootstrap is the small document the process reads first: it names a
// source kind and that source's connection details. The core never reads
// Bootstrap directly; it resolves to a Config through a Source.
type Bootstrap struct {
	Kind BootstrapKind `yaml:"kind" toml:"kind"`
	// Path is the full-config file path, used when Kind == BootstrapFile.
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
	// DatabaseURL and TenantID are used when Kind == BootstrapDatabase.
	DatabaseURL string `yaml:"database_url,omitempty" toml:"database_url,omitempty"`
	TenantID    string `yaml:"tenant_id,omitempty" toml:"tenant_id,omitempty"`
}

// Source resolves a Bootstrap document into a full, defaulted, validated
// Config. Swapping the source (file today, a database-backed resolver in
// the future) never changes what the core consumes.
type Source interface {
	Resolve() (*Config, error)
}

// NewSource builds the Source a Bootstrap document names. The database
// path is an explicit seam, not an implementation: spec.md §1 places
// connecting to an external config database out of scope.
func NewSource(b Bootstrap) (Source, error) {
	switch b.Kind {
	case "", BootstrapFile:
		return &FileSource{Path: b.Path}, nil
	case BootstrapDatabase:
		return &DatabaseSource{URL: b.DatabaseURL, TenantID: b.TenantID}, nil
	default:
		return nil, fmt.Errorf("config: unrecognized bootstrap kind %q", b.Kind)
	}
}

// FileSource resolves Config from a local YAML or TOML file, detected by
// extension (spec.md §6).
type FileSource struct {
	Path string
}

// Resolve reads, parses, env-substitutes, defaults, and validates the
// configuration file at s.Path.
func (s *FileSource) Resolve() (*Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.Path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(s.Path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse YAML %s: %w", s.Path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("config: parse TOML %s: %w", s.Path, err)
		}
	default:
		return nil, fmt.Errorf("config: unrecognized config extension %q (want .yaml, .yml, or .toml)", ext)
	}

	resolveEnvRefs(&cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DatabaseSource is the seam for a future database-backed config
// resolver. It is specified but not implemented per spec.md §1's
// non-goal of connecting to an external config store.
type DatabaseSource struct {
	URL      string
	TenantID string
}

// Resolve always fails: no database backend is implemented. A future
// resolver would connect using s.URL, scope to s.TenantID, and return the
// same *Config shape FileSource does.
func (s *DatabaseSource) Resolve() (*Config, error) {
	return nil, fmt.Errorf("config: database-backed bootstrap is not implemented (tenant %q)", s.TenantID)
}

// envRef matches a bare $VAR or braced ${VAR} environment-variable
// reference, the spec.md §6 syntax for provider.api_key and
// provider.headers values — distinct from the ${name}/${env.VAR}
// placeholder syntax internal/template resolves at request time.
var envRef = regexp.MustCompile(`\$\{?([A-Za-z_][A-Za-z0-9_]*)\}?`)

func expandEnvRefs(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		name := envRef.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

func resolveEnvRefs(cfg *Config) {
	for name, p := range cfg.Providers {
		p.APIKey = expandEnvRefs(p.APIKey)
		for k, v := range p.Headers {
			p.Headers[k] = expandEnvRefs(v)
		}
		cfg.Providers[name] = p
	}
	cfg.GatewayAPIKey = expandEnvRefs(cfg.GatewayAPIKey)
}
