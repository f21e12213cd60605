// Package connector implements the Provider Connector (spec.md §4.B): one
// HTTP client per upstream provider that builds a wire payload via a
// dialect.Adapter, attaches auth and custom headers, sends over the
// shared transport pool, classifies failures, and retries bounded
// failures before surfacing to the router.
package connector

import (
	"context"
	"time"

	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

// CredentialKind distinguishes how a provider's API key is supplied.
type CredentialKind string

const (
	CredentialPlain CredentialKind = "plain"
	CredentialEnv   CredentialKind = "env"
	CredentialFile  CredentialKind = "file"
)

// Credential is a provider's authentication material (spec.md §3
// "Provider" — "plain key, environment-var reference, or file-token
// reference with optional refresh").
type Credential struct {
	Kind CredentialKind
	// Value holds the literal key when Kind == CredentialPlain; the
	// environment variable name when Kind == CredentialEnv; the file
	// path when Kind == CredentialFile.
	Value string
}

// Capabilities is a connector's static feature set (spec.md §4.B).
type Capabilities struct {
	SupportsStreaming bool
	SupportsTools     bool
	SupportsVision    bool
}

// Provider is the static configuration one connector instance is built
// from, owned by the process and rebuilt on config reload (spec.md §3).
type Provider struct {
	ID         string
	Dialect    dialect.Name
	BaseURL    string
	Credential Credential
	Headers    map[string]string // custom headers, template-substituted per call
	Timeout    time.Duration
}

// Connector is the interface the router dispatches through.
type Connector interface {
	Capabilities() Capabilities
	Send(ctx context.Context, req *normalized.Request) (*normalized.Response, error)
	Stream(ctx context.Context, req *normalized.Request) (<-chan normalized.StreamEvent, error)
}
