package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"fxarb/internal/arbitrage"
	"fxarb/internal/config"
	"fxarb/internal/infra/health"
	"fxarb/internal/infra/http/middleware"
	"fxarb/internal/infra/log"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/infra/netutil"
	"fxarb/internal/infra/version"

	"github.com/prometheus/client_golang/prometheus"
)

// Board keeps the most recent arbitrage report for polling clients.
type Board struct {
	mu     sync.RWMutex
	latest *arbitrage.Report
}

func (b *Board) Name() string { return "board" }

func (b *Board) Publish(_ context.Context, r arbitrage.Report) error {
	b.mu.Lock()
	b.latest = &r
	b.mu.Unlock()
	return nil
}

func (b *Board) Latest() (arbitrage.Report, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return arbitrage.Report{}, false
	}
	return *b.latest, true
}

type Deps struct {
	Config   config.Config
	Logger   log.Logger
	Registry *prometheus.Registry
	Board    *Board
	// WS serves GET /ws when set.
	WS http.HandlerFunc
}

type Server struct{ handler http.Handler }

// New builds the HTTP surface: probes and version openly, metrics and
// pprof behind the admin allowlist.
func New(d Deps) *Server {
	logger := log.Component(d.Logger, "http")
	admin, invalid := netutil.ParseCIDRs(d.Config.Server.AdminAllowCIDRs)
	for _, s := range invalid {
		logger.Warn().Str("cidr", s).Msg("ignoring invalid admin CIDR")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", middleware.AdminGate(admin, metrics.Handler(d.Registry)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	mux.HandleFunc("GET /arbitrage/latest", latestHandler(d.Board))
	if d.WS != nil {
		mux.HandleFunc("GET /ws", d.WS)
	}
	if d.Config.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(admin, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(admin, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(admin, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(admin, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(admin, http.HandlerFunc(pprof.Trace)))
	}
	return &Server{handler: middleware.RequestID(middleware.Logger(logger)(mux))}
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.Config) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func latestHandler(b *Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := b.Latest()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rep)
	}
}
