// Package router implements the Router (spec.md §4.G): selects the first
// matching rule, walks its [primary, fallbacks...] candidate list consulting
// health and circuit-breaker state, injects fallback notices, and surfaces
// a composite failure when every candidate is exhausted.
package router

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/lunaroute/lunaroute/internal/breaker"
	"github.com/lunaroute/lunaroute/internal/connector"
	"github.com/lunaroute/lunaroute/internal/correlate"
	"github.com/lunaroute/lunaroute/internal/health"
	"github.com/lunaroute/lunaroute/internal/lunaerr"
	"github.com/lunaroute/lunaroute/internal/middleware"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/notify"
	"github.com/lunaroute/lunaroute/internal/recorder"
	"github.com/lunaroute/lunaroute/internal/streammetrics"
)

// Router dispatches a normalized request to the first admissible provider
// in the matching rule's candidate list, falling back on any failure whose
// kind is a fallback candidate (see lunaerr.Kind.FallbackCandidate).
type Router struct {
	rules      []Rule
	connectors map[string]connector.Connector
	health     *health.Monitor
	breaker    *breaker.Breaker
	notify     notify.Config
	logger     *slog.Logger
	recorder   recorder.Hook
	// toolCalls correlates a tool-call-id to the tool name first seen for
	// it, shared across the process lifetime (spec.md §5 shared-mutable-
	// state item (d)): bindStream uses it to backfill the name on later
	// tool_call_delta chunks that carry only the id, since typically only
	// the opening chunk for a call names the tool.
	toolCalls *correlate.Map
}

// New builds a Router. rules are sorted by ascending Priority (lower
// evaluated first); the input slice is not mutated. hook may be nil, in
// which case recorded events are dropped.
func New(rules []Rule, connectors map[string]connector.Connector, healthMonitor *health.Monitor, circuit *breaker.Breaker, notifyCfg notify.Config, hook recorder.Hook, logger *slog.Logger) *Router {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	if logger == nil {
		logger = slog.Default()
	}
	if hook == nil {
		hook = recorder.NoopHook{}
	}
	return &Router{
		rules:      sorted,
		connectors: connectors,
		health:     healthMonitor,
		breaker:    circuit,
		notify:     notifyCfg,
		logger:     logger,
		recorder:   hook,
		toolCalls:  correlate.New(correlate.DefaultTTL),
	}
}

func (r *Router) matchRule(req *normalized.Request) (Rule, error) {
	for _, rule := range r.rules {
		if rule.Matcher.Match(req) {
			return rule, nil
		}
	}
	return Rule{}, &NoRouteError{Model: req.Model}
}

// reasonFor maps a failure's Kind to the generic SwitchReason surfaced to
// the notification injector (spec.md §4.G step d).
func reasonFor(kind lunaerr.Kind) notify.SwitchReason {
	switch kind {
	case lunaerr.KindRateLimit:
		return notify.ReasonRateLimit
	case lunaerr.KindCircuitOpen:
		return notify.ReasonCircuitOpen
	default:
		return notify.ReasonServiceIssue
	}
}

// Send walks the matched rule's candidates in order, returning the first
// successful response. Client-input failures (4xx other than 401/403/429)
// and internal failures are not fallback candidates and are returned
// immediately; rate-limit, transient, auth and circuit-open failures
// advance to the next candidate. If every candidate fails, the
// returned error is a *lunaerr.Error of KindAllFailed wrapping an
// *AllProvidersFailedError with one entry per attempt.
func (r *Router) Send(ctx context.Context, req *normalized.Request) (*normalized.Response, error) {
	rule, err := r.matchRule(req)
	if err != nil {
		return nil, err
	}
	candidates := rule.Candidates()
	primary := candidates[0]
	requestID := middleware.FromContext(ctx).RequestID
	start := time.Now()

	r.recorder.Record(recorder.Event{
		Kind: recorder.EventRequestStart, RequestID: requestID, Timestamp: start,
		Provider: primary, Model: req.Model,
	})

	var attempts []AttemptFailure
	var lastReason notify.SwitchReason = notify.ReasonServiceIssue

	for i, providerID := range candidates {
		conn, ok := r.connectors[providerID]
		if !ok {
			attempts = append(attempts, AttemptFailure{Provider: providerID, Err: lunaerr.New(lunaerr.KindInternal, providerID, errConnectorNotConfigured(providerID))})
			continue
		}

		if r.breaker.Admit(providerID) == breaker.Deny {
			attempts = append(attempts, AttemptFailure{Provider: providerID, Err: lunaerr.New(lunaerr.KindCircuitOpen, providerID, errCircuitOpen(providerID))})
			lastReason = notify.ReasonCircuitOpen
			continue
		}

		attemptReq := req
		if i > 0 {
			attemptReq = notify.Inject(req, r.notify, primary, providerID, lastReason)
			r.recorder.Record(recorder.Event{
				Kind: recorder.EventFallback, RequestID: requestID, Timestamp: time.Now(),
				Provider: providerID, Model: req.Model,
				Metadata: map[string]string{"from": primary, "reason": string(lastReason)},
			})
		}

		resp, sendErr := conn.Send(ctx, attemptReq)
		if sendErr == nil {
			r.health.Record(providerID, health.Success)
			r.breaker.Record(providerID, true)
			r.recorder.Record(requestEndEvent(requestID, providerID, req.Model, start, resp, ""))
			return resp, nil
		}

		r.health.Record(providerID, health.Failure)
		r.breaker.Record(providerID, false)

		kind := lunaerr.KindOf(sendErr)
		if !kind.FallbackCandidate() {
			r.recorder.Record(requestEndEvent(requestID, providerID, req.Model, start, nil, sendErr.Error()))
			return nil, sendErr
		}

		r.logger.Warn("router: candidate failed, advancing to fallback",
			"provider", providerID, "kind", kind, "error", sendErr)
		attempts = append(attempts, AttemptFailure{Provider: providerID, Err: sendErr})
		lastReason = reasonFor(kind)
	}

	finalErr := lunaerr.New(lunaerr.KindAllFailed, primary, &AllProvidersFailedError{Attempts: attempts})
	r.recorder.Record(requestEndEvent(requestID, primary, req.Model, start, nil, finalErr.Error()))
	return nil, finalErr
}

// requestEndEvent builds the terminal recorder.Event for one Send attempt
// chain, capturing usage/finish-reason on success or the error string on
// failure (spec.md §4.N).
func requestEndEvent(requestID, provider, model string, start time.Time, resp *normalized.Response, errText string) recorder.Event {
	e := recorder.Event{
		Kind:      recorder.EventRequestEnd,
		RequestID: requestID,
		Timestamp: time.Now(),
		Provider:  provider,
		Model:     model,
		Latency:   time.Since(start),
		Error:     errText,
	}
	if resp != nil {
		e.PromptTokens = resp.Usage.PromptTokens
		e.CompletionTokens = resp.Usage.CompletionTokens
		if len(resp.Choices) > 0 {
			e.FinishReason = string(resp.Choices[0].FinishReason)
		}
	}
	return e
}

// Stream walks the matched rule's candidates the same way Send does, but
// binds to the first candidate whose connector successfully opens a
// stream: per spec.md §4.G, once a provider has produced output there is
// no mid-stream fallback. A failure after binding surfaces as a
// normalized.StreamError event and the stream ends.
func (r *Router) Stream(ctx context.Context, req *normalized.Request) (<-chan normalized.StreamEvent, error) {
	rule, err := r.matchRule(req)
	if err != nil {
		return nil, err
	}
	candidates := rule.Candidates()
	primary := candidates[0]
	requestID := middleware.FromContext(ctx).RequestID

	r.recorder.Record(recorder.Event{
		Kind: recorder.EventRequestStart, RequestID: requestID, Timestamp: time.Now(),
		Provider: primary, Model: req.Model,
	})

	var attempts []AttemptFailure
	var lastReason notify.SwitchReason = notify.ReasonServiceIssue

	for i, providerID := range candidates {
		conn, ok := r.connectors[providerID]
		if !ok {
			attempts = append(attempts, AttemptFailure{Provider: providerID, Err: lunaerr.New(lunaerr.KindInternal, providerID, errConnectorNotConfigured(providerID))})
			continue
		}

		if r.breaker.Admit(providerID) == breaker.Deny {
			attempts = append(attempts, AttemptFailure{Provider: providerID, Err: lunaerr.New(lunaerr.KindCircuitOpen, providerID, errCircuitOpen(providerID))})
			lastReason = notify.ReasonCircuitOpen
			continue
		}

		attemptReq := req
		if i > 0 {
			attemptReq = notify.Inject(req, r.notify, primary, providerID, lastReason)
			r.recorder.Record(recorder.Event{
				Kind: recorder.EventFallback, RequestID: requestID, Timestamp: time.Now(),
				Provider: providerID, Model: req.Model,
				Metadata: map[string]string{"from": primary, "reason": string(lastReason)},
			})
		}

		upstream, streamErr := conn.Stream(ctx, attemptReq)
		if streamErr != nil {
			r.health.Record(providerID, health.Failure)
			r.breaker.Record(providerID, false)

			kind := lunaerr.KindOf(streamErr)
			if !kind.FallbackCandidate() {
				r.recorder.Record(requestEndEvent(requestID, providerID, req.Model, time.Now(), nil, streamErr.Error()))
				return nil, streamErr
			}
			attempts = append(attempts, AttemptFailure{Provider: providerID, Err: streamErr})
			lastReason = reasonFor(kind)
			continue
		}

		// Bound: the connection opened. Record success now and relay
		// events as-is; a later StreamError is a runtime failure on the
		// already-chosen provider, not a fallback trigger.
		r.health.Record(providerID, health.Success)
		r.breaker.Record(providerID, true)
		return r.bindStream(requestID, providerID, upstream), nil
	}

	finalErr := lunaerr.New(lunaerr.KindAllFailed, primary, &AllProvidersFailedError{Attempts: attempts})
	r.recorder.Record(requestEndEvent(requestID, primary, req.Model, time.Now(), nil, finalErr.Error()))
	return nil, finalErr
}

// bindStream relays upstream events, additionally: validating the Start/
// delta/terminal sequence invariant (spec.md §8), feeding a
// streammetrics.Tracker for the terminal recording event's TTFT/latency/
// finish-reason, correlating tool-call ids to names for any later chunk
// that arrives without one (spec.md §5), and recording a health/breaker
// failure if the bound provider reports a mid-stream error.
func (r *Router) bindStream(requestID, providerID string, upstream <-chan normalized.StreamEvent) <-chan normalized.StreamEvent {
	out := make(chan normalized.StreamEvent)
	go func() {
		defer close(out)

		start := time.Now()
		tracker := streammetrics.New()
		validator := &normalized.StreamSequenceValidator{}

		for event := range upstream {
			if seqErr := validator.Observe(event); seqErr != nil {
				r.logger.Warn("router: stream sequence violation", "provider", providerID, "error", seqErr)
			}
			tracker.Observe(event)

			if event.Kind == normalized.StreamToolCallDelta {
				if event.Function.Name != "" {
					r.toolCalls.Put(event.ToolCallID, event.Function.Name)
				} else if name, ok := r.toolCalls.Get(event.ToolCallID); ok {
					event.Function.Name = name
				}
			}

			r.recorder.Record(recorder.Event{
				Kind: recorder.EventStreamChunk, RequestID: requestID, Timestamp: time.Now(),
				Provider: providerID,
			})

			if event.Kind == normalized.StreamError {
				r.health.Record(providerID, health.Failure)
				r.breaker.Record(providerID, false)
			}
			out <- event
		}

		summary := tracker.Finalize()
		r.recorder.Record(recorder.Event{
			Kind: recorder.EventRequestEnd, RequestID: requestID, Timestamp: time.Now(),
			Provider: providerID, Model: summary.Model, Latency: time.Since(start),
			TTFT: summary.TTFT, FinishReason: string(summary.FinishReason),
		})
	}()
	return out
}
