package transport

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsConfiguredClient(t *testing.T) {
	p := New(DefaultConfig())
	require.NotNil(t, p.Client())
	assert.Equal(t, 60*time.Second, p.Client().Timeout)

	transport, ok := p.Client().Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 100, transport.MaxIdleConns)
	assert.Equal(t, 10, transport.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, transport.IdleConnTimeout)
}

func TestStreamingClient_SharesTransportNoBlanketTimeout(t *testing.T) {
	p := New(DefaultConfig())
	sc := p.StreamingClient()
	assert.Equal(t, time.Duration(0), sc.Timeout)
	assert.Same(t, p.Client().Transport, sc.Transport)
}

func TestCloseIdleConnections_DoesNotPanic(t *testing.T) {
	p := New(DefaultConfig())
	assert.NotPanics(t, func() { p.CloseIdleConnections() })
}
