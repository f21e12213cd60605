// Package ingress implements the Ingress HTTP Surface (spec.md §4.K): one
// POST handler per wire dialect composing body read -> JSON parse ->
// dialect validate -> Router -> dialect-encode -> respond, plus the
// operational health/readiness endpoints. The handler applies no body-size
// cap itself; middleware.BodySizeLimiter wraps the body ahead of it, and an
// overflow surfaces from the body read as a 413.
package ingress

import (
	"context"
	"io"
	"net/http"

	"github.com/lunaroute/lunaroute/internal/dialect"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

// Router is the subset of *router.Router the ingress surface depends on,
// kept as an interface so handler tests don't need a live breaker/health
// stack.
type Router interface {
	Send(ctx context.Context, req *normalized.Request) (*normalized.Response, error)
	Stream(ctx context.Context, req *normalized.Request) (<-chan normalized.StreamEvent, error)
}

// Handler serves one dialect's POST endpoint.
type Handler struct {
	Adapter      dialect.Adapter
	Router       Router
	MaxBodyBytes int64
}

// NewHandler builds a dialect-specific ingress handler.
func NewHandler(adapter dialect.Adapter, router Router, maxBodyBytes int64) *Handler {
	return &Handler{Adapter: adapter, Router: router, MaxBodyBytes: maxBodyBytes}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.Adapter.Name(), err)
		return
	}

	req, err := h.Adapter.RequestFromWire(body)
	if err != nil {
		writeError(w, h.Adapter.Name(), err)
		return
	}

	if req.Stream {
		h.serveStream(w, r, req)
		return
	}
	h.serveSync(w, r, req)
}

func (h *Handler) serveSync(w http.ResponseWriter, r *http.Request, req *normalized.Request) {
	resp, err := h.Router.Send(r.Context(), req)
	if err != nil {
		writeError(w, h.Adapter.Name(), err)
		return
	}

	wire, err := h.Adapter.ResponseToWire(resp)
	if err != nil {
		writeError(w, h.Adapter.Name(), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(wire)
}

func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, req *normalized.Request) {
	events, err := h.Router.Stream(r.Context(), req)
	if err != nil {
		writeError(w, h.Adapter.Name(), err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	encoder := h.Adapter.NewStreamEncoder()

	for event := range events {
		frames, encErr := encoder.Encode(event)
		if encErr != nil {
			continue
		}
		for _, frame := range frames {
			w.Write(frame)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// NewMux builds the ingress http.ServeMux: one POST route per registered
// dialect handler plus the operational endpoints (spec.md §4.K). Using
// http.ServeMux over a router library is an explicit Open Question
// resolution (see DESIGN.md).
func NewMux(routes map[string]*Handler, ops OperationalHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	for path, handler := range routes {
		mux.Handle(path, handler)
	}
	mux.HandleFunc("/healthz", ops.Healthz)
	mux.HandleFunc("/readyz", ops.Readyz)
	mux.HandleFunc("/metrics", ops.Metrics)
	return mux
}

// OperationalHandlers supplies the three non-dialect endpoints.
type OperationalHandlers struct {
	Healthz http.HandlerFunc
	Readyz  http.HandlerFunc
	Metrics http.HandlerFunc
}
