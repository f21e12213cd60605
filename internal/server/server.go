// Package server wires every built-out piece (transport pool, provider
// connectors, health monitor, circuit breaker, router, middleware,
// ingress/bypass handlers, the recording hook and its writers) into one
// listening HTTP process, and owns its graceful-shutdown lifecycle.
// Grounded on the teacher's own internal/server/server.go Start/Stop/
// setupRoutes shape; the teacher's OS-specific "who's holding this port"
// diagnostics are dropped (see DESIGN.md) since nothing in this process
// model calls for process forensics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lunaroute/lunaroute/internal/breaker"
	"github.com/lunaroute/lunaroute/internal/bypass"
	"github.com/lunaroute/lunaroute/internal/config"
	"github.com/lunaroute/lunaroute/internal/connector"
	connanthropic "github.com/lunaroute/lunaroute/internal/connector/anthropic"
	connopenai "github.com/lunaroute/lunaroute/internal/connector/openai"
	"github.com/lunaroute/lunaroute/internal/dialect"
	dialanthropic "github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	dialopenai "github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/health"
	"github.com/lunaroute/lunaroute/internal/ingress"
	"github.com/lunaroute/lunaroute/internal/metrics"
	"github.com/lunaroute/lunaroute/internal/middleware"
	"github.com/lunaroute/lunaroute/internal/notify"
	"github.com/lunaroute/lunaroute/internal/recorder"
	"github.com/lunaroute/lunaroute/internal/recorder/jsonl"
	"github.com/lunaroute/lunaroute/internal/recorder/sqlite"
	"github.com/lunaroute/lunaroute/internal/redact"
	"github.com/lunaroute/lunaroute/internal/router"
	"github.com/lunaroute/lunaroute/internal/transport"
)

// RecordingConfig controls which recorder.Writer(s) the server wires into
// its Recording Hook, and whether PII redaction sits in front of them
// (spec.md §4.N, supplemented per SPEC_FULL.md).
type RecordingConfig struct {
	JSONLPath  string // empty disables the JSONL writer
	SQLitePath string // empty disables the SQLite writer
	Redact     bool
}

// Server assembles the full request path and owns its HTTP lifecycle.
type Server struct {
	logger    *slog.Logger
	watcher   *config.Watcher
	watchPath string // bootstrap file path to rewatch on reload; empty for non-file sources
	recorder  recorder.Hook
	metrics   *metrics.Sink
	httpSrv   *http.Server

	// Populated by buildRouter; readyzHandler queries these directly
	// rather than through the Router so that admissibility (spec.md §250)
	// can be reported without routing a request.
	health      *health.Monitor
	breaker     *breaker.Breaker
	providerIDs []string
}

// New builds a Server from a resolved Config. watchPath is the bootstrap
// file path to watch for hot-reload (spec.md §6); pass "" when the
// bootstrap source isn't file-backed.
func New(watcher *config.Watcher, watchPath string, rec RecordingConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if watcher.Current() == nil {
		return nil, errors.New("server: no configuration resolved")
	}

	sink := metrics.New()

	hook, err := buildRecordingHook(rec, sink, logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		logger:    logger,
		watcher:   watcher,
		watchPath: watchPath,
		recorder:  hook,
		metrics:   sink,
	}, nil
}

func buildRecordingHook(rec RecordingConfig, sink *metrics.Sink, logger *slog.Logger) (recorder.Hook, error) {
	writers := []recorder.Writer{sink}

	if rec.JSONLPath != "" {
		w, err := jsonl.Open(rec.JSONLPath)
		if err != nil {
			return nil, fmt.Errorf("server: open jsonl recorder: %w", err)
		}
		writers = append(writers, wrapRedact(w, rec.Redact))
	}
	if rec.SQLitePath != "" {
		w, err := sqlite.Open(rec.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("server: open sqlite recorder: %w", err)
		}
		writers = append(writers, wrapRedact(w, rec.Redact))
	}

	return recorder.NewBufferedHook(writers, recorder.Config{}, logger), nil
}

func wrapRedact(w recorder.Writer, enabled bool) recorder.Writer {
	if !enabled {
		return w
	}
	return redact.Wrap(w, nil)
}

// buildRouter assembles connectors, the health monitor, the circuit
// breaker and the routing table from the resolved config (spec.md §3,
// §4.B, §4.D, §4.E, §4.G).
func (s *Server) buildRouter(cfg *config.Config) (*router.Router, error) {
	pool := transport.New(transport.DefaultConfig())

	connectors := make(map[string]connector.Connector, len(cfg.Providers))
	providerIDs := make([]string, 0, len(cfg.Providers))
	for name, p := range cfg.Providers {
		provider := connector.Provider{
			ID:         name,
			BaseURL:    p.BaseURL,
			Credential: connector.Credential{Kind: connector.CredentialPlain, Value: p.APIKey},
			Headers:    p.Headers,
			Timeout:    p.Timeout(),
		}
		switch p.Type {
		case config.ProviderOpenAI:
			provider.Dialect = dialect.OpenAI
			connectors[name] = connopenai.New(provider, pool)
		case config.ProviderAnthropic:
			provider.Dialect = dialect.Anthropic
			connectors[name] = connanthropic.New(provider, pool)
		default:
			return nil, fmt.Errorf("server: provider %q has unrecognized type %q", name, p.Type)
		}
		providerIDs = append(providerIDs, name)
	}

	thresholds := health.Thresholds{
		HealthyThreshold:   cfg.Health.HealthyThreshold,
		UnhealthyThreshold: cfg.Health.UnhealthyThreshold,
		FailureWindow:      time.Duration(cfg.Health.FailureWindowSecs) * time.Second,
		MinRequests:        cfg.Health.MinRequests,
	}
	healthMonitor := health.New(thresholds, s.metrics)

	circuit := breaker.New(breaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		Timeout:          time.Duration(cfg.CircuitBreaker.TimeoutSecs) * time.Second,
	})

	rules, err := buildRules(cfg.Routing.Rules)
	if err != nil {
		return nil, err
	}

	notifyCfg := notify.DefaultConfig()
	notifyCfg.Enabled = cfg.Notification.Enabled
	if cfg.Notification.DefaultMessage != "" {
		notifyCfg.MessageTemplate = cfg.Notification.DefaultMessage
	}

	s.health = healthMonitor
	s.breaker = circuit
	s.providerIDs = providerIDs

	return router.New(rules, connectors, healthMonitor, circuit, notifyCfg, s.recorder, s.logger), nil
}

func buildRules(ruleCfgs []config.RouteRuleConfig) ([]router.Rule, error) {
	rules := make([]router.Rule, 0, len(ruleCfgs))
	for _, rc := range ruleCfgs {
		var matcher router.Matcher
		switch rc.Matcher {
		case "always":
			matcher = router.AlwaysMatcher{}
		case "model_pattern":
			m, err := router.NewModelRegexMatcher(rc.ModelPattern)
			if err != nil {
				return nil, fmt.Errorf("server: rule %q: %w", rc.Name, err)
			}
			matcher = m
		default:
			return nil, fmt.Errorf("server: rule %q has unrecognized matcher %q", rc.Name, rc.Matcher)
		}
		rules = append(rules, router.Rule{
			Priority:  rc.Priority,
			Name:      rc.Name,
			Matcher:   matcher,
			Primary:   rc.Primary,
			Fallbacks: rc.Fallbacks,
		})
	}
	return rules, nil
}

// buildMux assembles the dialect ingress handlers, the bypass fallthrough,
// and the operational endpoints into one http.ServeMux (spec.md §4.K,
// §4.I).
func (s *Server) buildMux(cfg *config.Config, rt *router.Router) *http.ServeMux {
	routes := map[string]*ingress.Handler{
		"/v1/chat/completions": ingress.NewHandler(dialopenai.New(), rt, cfg.MaxBodyBytes),
		"/v1/messages":         ingress.NewHandler(dialanthropic.New(), rt, cfg.MaxBodyBytes),
	}

	ops := ingress.OperationalHandlers{
		Healthz: s.healthzHandler(),
		Readyz:  s.readyzHandler(),
		Metrics: s.metricsHandler(),
	}

	mux := ingress.NewMux(routes, ops)

	classifier := bypass.NewClassifier("/v1/chat/completions", "/v1/messages", "/healthz", "/readyz", "/metrics")
	var bypassProvider *bypass.Provider
	if cfg.Bypass.Enabled {
		p := cfg.Providers[cfg.Bypass.Provider]
		bypassProvider = &bypass.Provider{
			BaseURL:        p.BaseURL,
			CredentialKind: bypass.CredentialPlain,
			Credential:     p.APIKey,
			AnthropicAuth:  p.Type == config.ProviderAnthropic,
		}
	}
	bypassHandler := bypass.NewHandler(classifier, cfg.Bypass.Enabled, bypassProvider, transport.New(transport.DefaultConfig()))
	mux.Handle("/", bypassHandler)

	return mux
}

func (s *Server) healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

// readyzHandler reports 200 if at least one configured provider is
// admissible (not unhealthy per health.Monitor.Admissible and not
// circuit-open), else 503
// with a per-provider breakdown (spec.md §250). It queries the health
// monitor and breaker directly rather than routing a probe request.
func (s *Server) readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if s.watcher.Current() == nil || s.health == nil || s.breaker == nil || len(s.providerIDs) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: no configuration resolved"))
			return
		}

		anyAdmissible := false
		breakdown := make(map[string]string, len(s.providerIDs))
		for _, id := range s.providerIDs {
			if s.health.Admissible(id) && s.breaker.State(id) != breaker.Open {
				breakdown[id] = "admissible"
				anyAdmissible = true
			} else {
				breakdown[id] = "unavailable"
			}
		}

		body, _ := json.Marshal(map[string]any{"providers": breakdown})
		w.Header().Set("Content-Type", "application/json")
		if !anyAdmissible {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		w.Write(body)
	}
}

func (s *Server) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(s.metrics.Render()))
	}
}

// Start builds the routing stack from the current config, binds the
// listener, and blocks until ctx is cancelled (the caller owns signal
// handling, via signal.NotifyContext, so it can tell a signal-triggered
// shutdown apart from any other cause — spec.md §6's distinct exit codes
// depend on that distinction), then shuts down gracefully. It returns a
// *BindError when the listener couldn't be opened, letting the caller map
// that to a distinct exit code.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.watcher.Current()
	rt, err := s.buildRouter(cfg)
	if err != nil {
		return err
	}
	mux := s.buildMux(cfg, rt)

	ms := middleware.NewMiddlewareSet(middleware.Config{
		CORS:          middleware.CORSConfig{Enabled: cfg.CORS.Enabled, AllowedOrigins: cfg.CORS.AllowedOrigins},
		MaxBodyBytes:  cfg.MaxBodyBytes,
		GatewayAPIKey: cfg.GatewayAPIKey,
	}, s.logger)

	handler := ms.DefaultChain().Handler(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	reloadStop := make(chan struct{})
	go func() {
		if err := s.watcher.Watch(s.watchPath, reloadStop); err != nil {
			s.logger.Error("config watcher stopped", "error", err)
		}
	}()
	defer close(reloadStop)

	listenErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
			return
		}
		listenErr <- nil
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return &BindError{Addr: addr, Err: err}
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", ctx.Err())
	}

	return s.Stop()
}

// Stop gracefully shuts down the HTTP server and the recording hook.
func (s *Server) Stop() error {
	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server forced to shutdown", "error", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Error("recorder close failed", "error", err)
		}
	}
	s.logger.Info("server exited")
	return nil
}

// BindError distinguishes a listener-bind failure (spec.md §6 exit code 2)
// from every other startup failure.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("server: listen on %s: %v", e.Addr, e.Err) }
func (e *BindError) Unwrap() error { return e.Err }
