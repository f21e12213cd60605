package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Config{
		APIDialect: ProviderOpenAI,
		Providers: map[string]ProviderConfig{
			"openai-primary": {Type: ProviderOpenAI, APIKey: "sk-test"},
		},
	}
	cfg.Routing.Rules = []RouteRuleConfig{
		{Name: "default", Priority: 0, Matcher: "always", Primary: "openai-primary"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults_FillsPortAndThresholds(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.APIDialect)
	assert.InDelta(t, 0.95, cfg.Health.HealthyThreshold, 0.0001)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.EqualValues(t, 10<<20, cfg.MaxBodyBytes)
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsMissingProviders(t *testing.T) {
	cfg := Config{APIDialect: ProviderOpenAI}
	cfg.ApplyDefaults()
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownRoutingPrimary(t *testing.T) {
	cfg := validConfig()
	cfg.Routing.Rules[0].Primary = "nonexistent"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsModelPatternRuleWithoutPattern(t *testing.T) {
	cfg := validConfig()
	cfg.Routing.Rules[0].Matcher = "model_pattern"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBypassWithUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Bypass = BypassConfig{Enabled: true, Provider: "ghost"}
	assert.Error(t, cfg.Validate())
}

func TestFileSource_ResolvesYAML(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 127.0.0.1
port: 9090
api_dialect: openai
providers:
  openai-primary:
    type: openai
    api_key: "${TEST_OPENAI_KEY}"
routing:
  rules:
    - name: default
      priority: 0
      matcher: always
      primary: openai-primary
`), 0o644))

	src := &FileSource{Path: path}
	cfg, err := src.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sk-from-env", cfg.Providers["openai-primary"].APIKey)
}

func TestFileSource_ResolvesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
host = "127.0.0.1"
port = 9091
api_dialect = "anthropic"

[providers.anthropic-primary]
type = "anthropic"
api_key = "sk-plain"

[[routing.rules]]
name = "default"
priority = 0
matcher = "always"
primary = "anthropic-primary"
`), 0o644))

	src := &FileSource{Path: path}
	cfg, err := src.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 9091, cfg.Port)
	assert.Equal(t, ProviderAnthropic, cfg.Providers["anthropic-primary"].Type)
}

func TestFileSource_RejectsUnrecognizedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("nothing"), 0o644))

	_, err := (&FileSource{Path: path}).Resolve()
	assert.Error(t, err)
}

func TestFileSource_InvalidConfigFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 127.0.0.1
providers: {}
`), 0o644))

	_, err := (&FileSource{Path: path}).Resolve()
	assert.Error(t, err)
}

func TestDatabaseSource_ResolveIsUnimplemented(t *testing.T) {
	src := &DatabaseSource{URL: "postgres://example", TenantID: "tenant-1"}
	_, err := src.Resolve()
	assert.Error(t, err)
}

func TestNewSource_DispatchesOnBootstrapKind(t *testing.T) {
	fileSrc, err := NewSource(Bootstrap{Kind: BootstrapFile, Path: "config.yaml"})
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, fileSrc)

	dbSrc, err := NewSource(Bootstrap{Kind: BootstrapDatabase, DatabaseURL: "postgres://x"})
	require.NoError(t, err)
	assert.IsType(t, &DatabaseSource{}, dbSrc)

	_, err = NewSource(Bootstrap{Kind: "nonsense"})
	assert.Error(t, err)
}

func TestExpandEnvRefs_BareAndBracedForms(t *testing.T) {
	t.Setenv("SOME_VAR", "resolved")
	assert.Equal(t, "resolved", expandEnvRefs("$SOME_VAR"))
	assert.Equal(t, "resolved", expandEnvRefs("${SOME_VAR}"))
	assert.Equal(t, "$MISSING_VAR", expandEnvRefs("$MISSING_VAR"))
}
