package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spinlive/roomserver/internal/v1/auth"
	"github.com/spinlive/roomserver/internal/v1/bus"
	"github.com/spinlive/roomserver/internal/v1/chat"
	"github.com/spinlive/roomserver/internal/v1/config"
	"github.com/spinlive/roomserver/internal/v1/health"
	"github.com/spinlive/roomserver/internal/v1/logging"
	"github.com/spinlive/roomserver/internal/v1/mediaengine"
	"github.com/spinlive/roomserver/internal/v1/middleware"
	"github.com/spinlive/roomserver/internal/v1/orchestrator"
	"github.com/spinlive/roomserver/internal/v1/presence"
	"github.com/spinlive/roomserver/internal/v1/ratelimit"
	"github.com/spinlive/roomserver/internal/v1/registry"
	"github.com/spinlive/roomserver/internal/v1/storage"
	"github.com/spinlive/roomserver/internal/v1/tracing"
	"github.com/spinlive/roomserver/internal/v1/transport"
)

// dispatcherProxy breaks the Hub/Orchestrator construction cycle: the Hub
// needs a transport.Dispatcher before the Orchestrator can exist (it needs
// the Hub as its EventBus), so the proxy is handed to NewHub first and
// pointed at the real Orchestrator once both are built.
type dispatcherProxy struct {
	orchestrator *orchestrator.Orchestrator
}

func (d *dispatcherProxy) OnConnect(connectionID string) { d.orchestrator.OnConnect(connectionID) }
func (d *dispatcherProxy) OnMessage(connectionID string, env transport.Envelope) {
	d.orchestrator.OnMessage(connectionID, env)
}
func (d *dispatcherProxy) OnDisconnect(connectionID string) {
	d.orchestrator.OnDisconnect(connectionID)
}

// splitOrigins parses a comma-separated allowed-origins list, matching the
// Hub's own default-to-localhost behavior when unset.
func splitOrigins(csv string) []string {
	if csv == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	if err := godotenv.Load(); err != nil {
		os.Stderr.WriteString("no .env file found, relying on environment variables\n")
	}

	cfg, err := config.ValidateEnv(os.Getenv)
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx := context.Background()

	if collectorAddr := os.Getenv("OTEL_COLLECTOR_ADDR"); collectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "roomserver", collectorAddr)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: failed to initialize tracer provider", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	} else {
		logging.Info(ctx, "OTEL_COLLECTOR_ADDR not set, tracing disabled")
	}

	var redisService *bus.Service
	if cfg.RedisEnabled {
		redisService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to redis", zap.Error(err))
		}
		defer redisService.Close()
	}

	var store storage.Store
	switch cfg.StorageBackend {
	case "redis":
		store = storage.NewRedisStore(redisService.Client())
	default:
		jsonStore, err := storage.NewJSONStore(cfg.JSONStoreDir)
		if err != nil {
			logging.Fatal(ctx, "failed to initialize json store", zap.String("dir", cfg.JSONStoreDir), zap.Error(err))
		}
		store = jsonStore
	}
	chatCoord := chat.New(store)

	mediaPool, err := mediaengine.NewPool(ctx, cfg.MinWorkers, cfg.MaxWorkers, cfg.AnnouncedIP)
	if err != nil {
		logging.Fatal(ctx, "failed to start media engine worker pool", zap.Error(err))
	}

	reg := registry.New()
	go mediaPool.RunAutoscaler(ctx, reg)

	presCtrl := presence.New(cfg.DisconnectGracePeriod)
	defer presCtrl.Shutdown()

	var crossPod orchestrator.CrossPodBus
	if redisService != nil {
		crossPod = redisService
	}

	var validator transport.TokenValidator
	if cfg.AdmissionEnabled {
		v, err := auth.NewValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			logging.Fatal(ctx, "failed to initialize admission validator", zap.Error(err))
		}
		validator = v
	}

	// Hub and Orchestrator depend on each other (Hub is the Orchestrator's
	// EventBus; the Orchestrator is the Hub's Dispatcher), so construction
	// goes through a thin proxy that's filled in once both sides exist.
	dispatch := &dispatcherProxy{}
	hub := transport.NewHub(dispatch, validator, cfg.AdmissionEnabled, cfg.AllowedOrigins)
	orch := orchestrator.New(reg, presCtrl, mediaPool, chatCoord, hub, crossPod)
	dispatch.orchestrator = orch
	defer hub.Shutdown(context.Background())

	var limiterRedisClient *redis.Client
	if redisService != nil {
		limiterRedisClient = redisService.Client()
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, limiterRedisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to initialize rate limiter", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	router.Use(cors.New(corsConfig))

	router.Use(limiter.StandardMiddleware())

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/room", func(c *gin.Context) {
			if !limiter.CheckWebSocket(c) {
				return
			}
			hub.ServeWs(c)
		})
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(redisService, mediaPool)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "roomserver starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down roomserver")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
}
