// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

// Package server wires the ArgusLM platform together: configuration,
// storage, the credential vault, the domain services, the HTTP surface,
// and graceful shutdown.
package server

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"arguslm/platform/server/alert"
	"arguslm/platform/server/archive"
	"arguslm/platform/server/benchmark"
	"arguslm/platform/server/catalog"
	"arguslm/platform/server/config"
	"arguslm/platform/server/invoke"
	"arguslm/platform/server/monitoring"
	"arguslm/platform/server/provider"
	"arguslm/platform/server/storage"
	"arguslm/platform/server/throttle"
	"arguslm/platform/shared/logger"
)

const version = "1.0.0"

// shutdownTimeout bounds the drain of in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

// Prometheus metrics
var promHTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "arguslm_http_requests_total",
		Help: "HTTP requests by route template, method, and status",
	},
	[]string{"path", "method", "status"},
)

func init() {
	prometheus.MustRegister(promHTTPRequests)
}

// Run starts the ArgusLM server and blocks until shutdown. Configuration
// or startup failures exit the process with a non-zero status before the
// listener starts.
func Run() {
	if err := run(); err != nil {
		log.Fatalf("[Server] %v", err)
	}
}

func run() error {
	slog := logger.New("server")

	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.EnsureSchema(db); err != nil {
		return err
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	key, err := vaultKey(startupCtx, cfg)
	if err != nil {
		return err
	}
	vault, err := provider.NewVault(key)
	if err != nil {
		return err
	}

	limiter, err := throttle.NewManager(throttle.DefaultLimits())
	if err != nil {
		return err
	}
	invoker := invoke.NewInvoker(logger.New("invoke"))

	providerRepo := provider.NewPostgresRepository(db)
	modelRepo := catalog.NewPostgresRepository(db)
	runRepo := benchmark.NewPostgresRepository(db)
	checkRepo := monitoring.NewPostgresRepository(db)
	alertRepo := alert.NewPostgresRepository(db)

	// Progress bus: in-process hub, mirrored over Redis when configured so
	// every replica serves the same stream.
	hub := benchmark.NewHub()
	var bus benchmark.Bus = hub
	var bridge *benchmark.Bridge
	if cfg.RedisURL != "" {
		bridge, err = benchmark.NewBridge(cfg.RedisURL, hub, logger.New("benchmark"))
		if err != nil {
			return err
		}
		defer bridge.Close()
		bus = bridge
	}

	store, err := archive.FromConfig(startupCtx, cfg.Archive, cfg.AWSRegion)
	if err != nil {
		return err
	}
	if store != nil {
		slog.Info("Export archival enabled", map[string]interface{}{
			"backend": cfg.Archive.Backend,
		})
	}

	providerService := provider.NewServiceWithOptions(providerRepo, vault, invoker, nil, logger.New("provider"))
	catalogService := catalog.NewServiceWithOptions(modelRepo, logger.New("catalog"))
	alertService := alert.NewServiceWithOptions(alertRepo, logger.New("alert"))
	evaluator := alert.NewEvaluator(alertRepo)

	checker := monitoring.NewChecker(invoker, logger.New("monitoring"))
	monitoringService := monitoring.NewServiceWithOptions(checkRepo, modelRepo, vault, checker, limiter, evaluator, logger.New("monitoring"))

	engine := benchmark.NewEngineWithOptions(runRepo, modelRepo, vault, invoker, limiter, bus, logger.New("benchmark"))
	defer engine.Close()

	if err := monitoringService.Start(startupCtx); err != nil {
		return err
	}
	defer monitoringService.Stop()

	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/health", healthHandler(db, monitoringService, bridge)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	provider.NewHandler(providerService).RegisterRoutes(r)
	catalog.NewHandler(catalogService).RegisterRoutes(r)
	monitoring.NewHandlerWithArchive(monitoringService, store).RegisterRoutes(r)
	benchmark.NewHandlerWithArchive(engine, store).RegisterRoutes(r)
	alert.NewHandler(alertService).RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: c.Handler(r),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("ArgusLM server listening", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-stop:
		slog.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	}

	// Stop order: no new monitoring ticks, then cancel in-flight benchmark
	// tasks, then drain the listener. The deferred closes take care of the
	// bridge and the database.
	monitoringService.Stop()
	engine.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	slog.Info("Shutdown complete", nil)
	return nil
}

// configPath returns the optional YAML config file location.
func configPath() string {
	if path := os.Getenv("ARGUSLM_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

// vaultKey resolves the credential vault key: from AWS Secrets Manager
// when a secret id is configured, from the config value otherwise.
func vaultKey(ctx context.Context, cfg *config.Config) ([]byte, error) {
	if cfg.EncryptionKeySecretID != "" {
		return provider.FetchVaultKey(ctx, cfg.EncryptionKeySecretID, cfg.AWSRegion)
	}
	return cfg.DecodeEncryptionKey()
}

// healthHandler reports process liveness plus per-component booleans.
func healthHandler(db *sql.DB, mon *monitoring.Service, bridge *benchmark.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]bool{
			"database":  db.PingContext(ctx) == nil,
			"scheduler": mon.SchedulerRunning(),
		}
		if bridge != nil {
			components["redis"] = bridge.Healthy(ctx)
		}

		health := map[string]interface{}{
			"status":     "healthy",
			"service":    "arguslm-server",
			"version":    version,
			"timestamp":  time.Now().UTC(),
			"components": components,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health); err != nil {
			log.Printf("[Server] Error encoding health response: %v", err)
		}
	}
}

// metricsMiddleware counts completed requests by route template, method,
// and status. Route templates keep the label cardinality bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		promHTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// statusRecorder captures the response status for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes the WebSocket upgrade through to the wrapped writer.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
