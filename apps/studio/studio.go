// Package studio assembles the publishing studio HTTP service and its background worker.
package studio

import (
	"context"
	"crypto"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/internal/monitor"
	"github.com/OdyseeTeam/mintstudio/pkg/keybox"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultShutdownTimeout = 30 * time.Second

type LauncherOption func(*Launcher)

// Launcher serves the studio API next to health checks, metrics and the session key set.
type Launcher struct {
	api             http.Handler
	prefix          string
	publicKey       crypto.PublicKey
	corsDomains     []string
	httpAddress     string
	shutdownTimeout time.Duration
	onShutdown      []func()
	logger          logging.KVLogger

	draining   atomic.Bool
	httpServer *http.Server
}

func NewLauncher(options ...LauncherOption) *Launcher {
	l := &Launcher{
		logger:          logging.NoopKVLogger{},
		prefix:          "/api/v1",
		httpAddress:     ":8080",
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func WithLogger(logger logging.KVLogger) LauncherOption {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// WithAPI mounts the versioned API router under the prefix.
func WithAPI(h http.Handler) LauncherOption {
	return func(l *Launcher) {
		l.api = h
	}
}

func WithPrefix(prefix string) LauncherOption {
	return func(l *Launcher) {
		l.prefix = prefix
	}
}

// WithPublicKey exposes the session signing key for services validating session tokens.
func WithPublicKey(publicKey crypto.PublicKey) LauncherOption {
	return func(l *Launcher) {
		l.publicKey = publicKey
	}
}

func WithHTTPAddress(address string) LauncherOption {
	return func(l *Launcher) {
		l.httpAddress = address
	}
}

func WithCORSDomains(domains []string) LauncherOption {
	return func(l *Launcher) {
		l.corsDomains = domains
	}
}

// WithShutdownHook runs fn after the http server has stopped.
func WithShutdownHook(fn func()) LauncherOption {
	return func(l *Launcher) {
		l.onShutdown = append(l.onShutdown, fn)
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take once shutdown completes.
func WithShutdownTimeout(d time.Duration) LauncherOption {
	return func(l *Launcher) {
		l.shutdownTimeout = d
	}
}

func (l *Launcher) Build() (chi.Router, error) {
	metrics.Register(nil)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		monitor.RecoveryMiddleware(l.logger),
		cors.Handler(cors.Options{
			AllowedOrigins:   l.corsDomains,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	if l.api == nil {
		return nil, errors.New("launcher has no api handler")
	}
	r.Mount(l.prefix, l.api)
	l.mountInternal(r)

	l.httpServer = &http.Server{
		Addr:              l.httpAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	l.logger.Info("studio handler built", "prefix", l.prefix)
	return r, nil
}

func (l *Launcher) mountInternal(r chi.Router) {
	ok := func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("OK")) }
	r.Get("/healthz", ok)
	r.Get("/livez", func(w http.ResponseWriter, req *http.Request) {
		if l.draining.Load() {
			http.Error(w, "studio is shutting down", http.StatusServiceUnavailable)
			return
		}
		ok(w, req)
	})
	r.Handle("/internal/metrics", promhttp.Handler())
	if l.publicKey != nil {
		r.Get("/.well-known/jwks.json", keybox.KeySetHandler(l.publicKey))
	}
}

// Launch serves until CompleteShutdown is called.
func (l *Launcher) Launch() {
	l.logger.Info("launching http server", "address", l.httpAddress)
	if err := l.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("http server returned error", "err", err)
	}
	l.logger.Info("http server stopped")
}

// StartShutdown fails the liveness check so that traffic drains away before CompleteShutdown.
func (l *Launcher) StartShutdown() {
	l.logger.Info("draining")
	l.draining.Store(true)
}

// CompleteShutdown stops the http server, then runs the shutdown hooks.
func (l *Launcher) CompleteShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()
	if err := l.httpServer.Shutdown(ctx); err != nil {
		l.logger.Warn("http server did not stop cleanly", "err", err)
	}
	for _, fn := range l.onShutdown {
		fn()
	}
}
