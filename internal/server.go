package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/notesbox/internal/config"
	"github.com/2beens/notesbox/internal/db"
	"github.com/2beens/notesbox/internal/kv"
	"github.com/2beens/notesbox/internal/middleware"
	notesBox "github.com/2beens/notesbox/internal/notes_box"
	"github.com/2beens/notesbox/internal/telemetry/metrics"
	"github.com/2beens/notesbox/internal/telemetry/tracing"
	"github.com/2beens/notesbox/pkg"
)

const writeRateLimiterKey = "notes-write"

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config       *config.Config
	storage      kv.Storage
	redisClient  *redis.Client // set only with the redis backend
	notesService *notesBox.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config           *config.Config
	VersionInfo      string
	RedisPassword    string
	PostgresPassword string
	// Storage overrides the configured backend when set
	Storage kv.Storage
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(cfg.TracingEnabled, "notesbox")
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	storage := params.Storage
	if storage == nil {
		storage, err = kv.New(ctx, kv.ParamsFromConfig(cfg, params.RedisPassword, params.PostgresPassword))
		if err != nil {
			otelShutdown()
			return nil, fmt.Errorf("open storage [%s]: %w", cfg.StorageBackend, err)
		}
	}
	log.Debugf("notes stored in [%s] slot [%s/%s]", cfg.StorageBackend, cfg.StorageNamespace, cfg.StorageKey)

	var collectors []prometheus.Collector
	var redisClient *redis.Client
	switch st := storage.(type) {
	case *kv.PostgresStorage:
		collectors = append(collectors, db.PoolCollector(st.Pool(), cfg.PostgresDBName))
	case *kv.RedisStorage:
		redisClient = st.Client()
	}

	promRegistry := metrics.SetupPrometheus(collectors...)
	metricsManager := metrics.NewManager("notesbox", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0) // set to 1 once serving

	var backups *notesBox.Backups
	if cfg.BackupsDir != "" {
		backups, err = notesBox.NewBackups(cfg.BackupsDir)
		if err != nil {
			otelShutdown()
			_ = storage.Close()
			return nil, fmt.Errorf("notes backups: %w", err)
		}
	}

	store := notesBox.NewStore(storage, cfg.StorageNamespace, cfg.StorageKey, metricsManager)
	notesService := notesBox.NewService(notesBox.NewServiceParams{
		Store:          store,
		Backups:        backups,
		BackupOnDelete: cfg.BackupOnDelete,
		Metrics:        metricsManager,
	})

	return &Server{
		config:       cfg,
		versionInfo:  params.VersionInfo,
		storage:      storage,
		redisClient:  redisClient,
		notesService: notesService,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("notesbox-router"))

	var writeMiddleware []mux.MiddlewareFunc
	if s.config.WriteRateLimitPerMin > 0 {
		if s.redisClient == nil {
			log.Warnf("write rate limit set to %d/min, but it needs the redis backend, ignoring", s.config.WriteRateLimitPerMin)
		} else {
			reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
			writeMiddleware = append(writeMiddleware, middleware.RateLimit(
				reqRateLimiter,
				writeRateLimiterKey,
				s.config.WriteRateLimitPerMin,
				s.metricsManager,
			))
		}
	}

	notesHandler := notesBox.NewHandler(s.notesService)
	notesHandler.SetupRoutes(r, writeMiddleware...)

	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{Registry: s.promRegistry},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests before the storage goes away
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.storage != nil {
		log.Debugln("closing storage ...")
		if err := s.storage.Close(); err != nil {
			log.Errorf("failed to close storage: %s", err)
		}
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
