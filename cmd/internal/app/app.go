// Package app wires the authcore server runtime: config, logging, persistence,
// metrics, HTTP routes and the expired-token sweeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	authapi "authcore/cmd/internal/auth/api"
	"authcore/cmd/internal/auth/codec"
	"authcore/cmd/internal/auth/session"
	"authcore/cmd/security/password"
)

// App is the authcore runtime: it owns the backend, the session service and
// HTTP server wiring.
type App struct {
	cfg Config
	log Logger

	backend  *backend
	sessions *session.Service
	sessCfg  session.Config
	auth     *authapi.Handler
	registry *prometheus.Registry
}

// New constructs a fully wired App from config and logger. Component configs
// are read from the environment here so startup fails before anything listens.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	codecCfg, err := codec.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	apiCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	digester, err := newDigester(sessCfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := session.NewPromMetrics(reg)
	if err != nil {
		return nil, err
	}

	tokens, err := codec.New(codecCfg)
	if err != nil {
		return nil, err
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	hasher := password.NewPool(pwCfg, password.WithObserver(func(op string, d time.Duration) {
		metrics.ObserveHash(op, d)
		if d > time.Second {
			log.Warn("password.slow", "op", op, "duration_ms", d.Milliseconds())
		}
	}))

	svc, err := session.NewService(sessCfg, be.tokens, be.users, hasher, tokens,
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithDigester(digester),
		session.WithPreferences(be.prefs),
	)
	if err != nil {
		be.Close()
		return nil, err
	}

	auth, err := authapi.NewHandler(log, apiCfg, svc)
	if err != nil {
		be.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		backend:  be,
		sessions: svc,
		sessCfg:  sessCfg,
		auth:     auth,
		registry: reg,
	}, nil
}

// Handler returns the full HTTP handler, middleware included.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.backend, a.registry, a.auth)
	return WithRequestLogging(WithSecurityHeaders(mux), a.log)
}

// Run starts the HTTP server and the sweeper and blocks until ctx is
// cancelled or either fails. Resources are released before returning.
func (a *App) Run(ctx context.Context) error {
	defer a.backend.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"backend", a.cfg.backendName(),
		"rotate_refresh", a.sessCfg.RotateRefresh,
		"sweep_interval", a.sessCfg.SweepInterval.String(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.sessions.RunSweeper(gctx, a.sessCfg.SweepInterval)
	})

	if err := g.Wait(); err != nil {
		a.log.Error("server.fail", "err", err)
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
