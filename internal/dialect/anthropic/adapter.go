package anthropic

import (
	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

// Adapter implements dialect.Adapter for the Anthropic messages wire
// format.
type Adapter struct{}

// New constructs the Anthropic dialect adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() dialect.Name { return dialect.Anthropic }

func (a *Adapter) RequestFromWire(body []byte) (*normalized.Request, error) {
	return a.requestFromWire(body)
}

func (a *Adapter) RequestToWire(req *normalized.Request) ([]byte, error) {
	return a.requestToWire(req)
}

func (a *Adapter) ResponseFromWire(body []byte) (*normalized.Response, error) {
	return a.responseFromWire(body)
}

func (a *Adapter) ResponseToWire(resp *normalized.Response) ([]byte, error) {
	return a.responseToWire(resp)
}

func (a *Adapter) NewStreamDecoder() dialect.StreamDecoder {
	return a.newStreamDecoder()
}

func (a *Adapter) NewStreamEncoder() dialect.StreamEncoder {
	return a.newStreamEncoder()
}

var _ dialect.Adapter = (*Adapter)(nil)
