package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kitarekayasa/internal/auth"
	challengecontroller "kitarekayasa/internal/challenge/controller"
	challengerepo "kitarekayasa/internal/challenge/repository"
	challengeservice "kitarekayasa/internal/challenge/service"
	"kitarekayasa/internal/common/cache"
	"kitarekayasa/internal/common/db"
	commonmw "kitarekayasa/internal/common/http/middleware"
	"kitarekayasa/internal/common/mq"
	"kitarekayasa/internal/common/storage"
	"kitarekayasa/internal/ratelimit"
	"kitarekayasa/internal/upload"
	usercontroller "kitarekayasa/internal/user/controller"
	userrepo "kitarekayasa/internal/user/repository"
	userservice "kitarekayasa/internal/user/service"
	"kitarekayasa/pkg/utils/logger"
	"kitarekayasa/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/server.yaml"

// routeDeps groups what the router needs.
type routeDeps struct {
	Auth       *userservice.AuthService
	Challenges *challengeservice.ChallengeService
	Tokens     auth.TokenParser
	Limiter    *ratelimit.Limiter
	Registry   *prometheus.Registry
	Health     func(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()
	dbProvider := db.NewStaticProvider(mysqlDB)

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}
	if err := objStorage.EnsureBucket(context.Background(), appCfg.Upload.Bucket); err != nil {
		logger.Error(context.Background(), "ensure upload bucket failed", zap.String("bucket", appCfg.Upload.Bucket), zap.Error(err))
		return
	}

	var events challengeservice.EventPublisher
	if appCfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka.KafkaConfig)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = producer.Close()
		}()
		events = challengeservice.NewLifecyclePublisher(producer, appCfg.Challenge.EventsTopic)
	}

	tokens, err := auth.NewTokenManager(appCfg.Auth.TokenConfig)
	if err != nil {
		logger.Error(context.Background(), "init token manager failed", zap.Error(err))
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authService := userservice.NewAuthService(dbProvider, userrepo.NewUserRepository(dbProvider), tokens, redisCache, appCfg.Auth.AuthServiceConfig)
	challengeService := challengeservice.NewChallengeService(challengeservice.Dependencies{
		DB:          dbProvider,
		Challenges:  challengerepo.NewChallengeRepositoryWithTTL(dbProvider, redisCache, appCfg.Challenge.CacheTTL, appCfg.Challenge.CacheEmptyTTL),
		Proposals:   challengerepo.NewProposalRepository(dbProvider),
		Submissions: challengerepo.NewSubmissionRepository(dbProvider),
		Uploads:     upload.NewHandler(objStorage, appCfg.Upload),
		Events:      events,
		Metrics:     challengeservice.NewMetrics(registry),
	}, appCfg.Challenge)

	httpServer := buildHTTPServer(appCfg.Server, routeDeps{
		Auth:       authService,
		Challenges: challengeService,
		Tokens:     tokens,
		Limiter:    ratelimit.NewLimiter(redisCache, appCfg.RateLimit),
		Registry:   registry,
		Health: func(ctx context.Context) error {
			if err := mysqlDB.Ping(ctx); err != nil {
				return err
			}
			return redisCache.Ping(ctx)
		},
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, deps routeDeps) *http.Server {
	router := buildRouter(cfg, deps)
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func buildRouter(cfg ServerConfig, deps routeDeps) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxMultipartMemory
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())
	if deps.Registry != nil {
		router.Use(commonmw.NewHTTPMetrics(deps.Registry).Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}
	router.GET("/healthz", healthHandler(deps.Health))

	limiter := deps.Limiter
	required := auth.Required(deps.Tokens)
	optional := auth.Optional(deps.Tokens)
	posters := auth.Required(deps.Tokens, auth.RoleUmum, auth.RoleAdmin)

	authController := usercontroller.NewAuthController(deps.Auth)
	authAPI := router.Group("/api/v1/auth")
	authAPI.POST("/register", limiter.Middleware("auth.register", ratelimit.Policy{Window: time.Hour, IPMax: 20}), authController.Register)
	authAPI.POST("/login", limiter.Middleware("auth.login", ratelimit.Policy{}), authController.Login)
	authAPI.GET("/me", required, authController.Me)

	challengeController := challengecontroller.NewChallengeController(deps.Challenges)
	api := router.Group("/api/v1")
	api.GET("/challenges", optional, challengeController.List)
	api.GET("/challenges/:id", optional, challengeController.Get)
	api.POST("/challenges", posters, limiter.Middleware("challenges.create", ratelimit.Policy{}), challengeController.Create)
	api.POST("/challenges/:id/proposals", required, limiter.Middleware("proposals.create", ratelimit.Policy{}), challengeController.SubmitProposal)
	api.GET("/challenges/:id/proposals", required, challengeController.ListProposals)
	api.POST("/proposals/:id/approve", required, challengeController.ApproveProposal)
	api.POST("/challenges/:id/submissions", required, limiter.Middleware("submissions.create", ratelimit.Policy{}), challengeController.SubmitWork)
	api.GET("/challenges/:id/submissions", required, challengeController.ListSubmissions)
	api.POST("/submissions/:id/review", required, challengeController.ReviewSubmission)

	return router
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.Warn(ctx, "health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
