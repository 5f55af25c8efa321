package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dropshare-api/config"
	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/application/services"
	"dropshare-api/internal/infrastructure/cache"
	"dropshare-api/internal/infrastructure/clock"
	"dropshare-api/internal/infrastructure/db/postgres"
	"dropshare-api/internal/infrastructure/db/postgres/container"
	"dropshare-api/internal/infrastructure/jwt"
	"dropshare-api/internal/infrastructure/lock"
	zaplog "dropshare-api/internal/infrastructure/logger"
	"dropshare-api/internal/infrastructure/metrics"
	"dropshare-api/internal/infrastructure/mq"
	"dropshare-api/internal/infrastructure/s3"
	"dropshare-api/internal/interface/api/rest"
	"dropshare-api/internal/interface/api/rest/middleware"
	"dropshare-api/pkg/rmqconsumer"
)

type App struct {
	logger     *zap.Logger
	cfg        config.Config
	db         *pgxpool.Pool
	blobs      ports.BlobStore
	httpSrv    *http.Server
	router     *gin.Engine
	mCounter   *prometheus.CounterVec
	mCache     *prometheus.CounterVec
	mSweep     prometheus.Histogram
	mq         ports.RabbitMQ
	mqConsumer ports.RMQConsumer
	redis      *redis.Client
	sweeper    ports.Sweeper
}

func NewApp(ctx context.Context) (*App, error) {
	// config; .env is optional
	envErr := godotenv.Load(".env")
	cfg := config.Load()

	// logger
	logger, err := zaplog.New(cfg.Log)
	if err != nil {
		log.Fatalf("cannot initialize zap logger: %v", err)
	}
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Fatal("error loading .env file", zap.Error(envErr))
	}

	// metrics
	mCounter := metrics.NewCounter()

	// router
	switch cfg.App.Env {
	case gin.ReleaseMode, "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	// empty list: ClientIP is the socket peer, forwarding headers are ignored
	if err := r.SetTrustedProxies(cfg.App.TrustedProxies); err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err), zap.Strings("proxies", cfg.App.TrustedProxies))
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogGin(logger, mCounter))
	r.Use(cors.New(corsConfig(cfg.App.CorsOrigins)))

	tmpl, err := rest.Templates()
	if err != nil {
		logger.Fatal("failed to parse templates", zap.Error(err))
	}
	r.SetHTMLTemplate(tmpl)

	// httpServer
	httpSrv := &http.Server{
		Addr:              cfg.App.Host + ":" + cfg.App.Port,
		Handler:           gzhttp.GzipHandler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// db
	dbDsn, err := cfg.DBDSN()
	if err != nil {
		logger.Fatal("DB config error", zap.Error(err))
	}
	if err = postgres.Migrate(logger, dbDsn); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	dbPool, err := postgres.New(ctx, logger, dbDsn)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// blob store
	s3Client, err := s3.New(logger, cfg.S3, cfg.Upload)
	if err != nil {
		logger.Fatal("failed to init S3 client", zap.Error(err))
	}

	app := &App{
		logger:   logger,
		cfg:      cfg,
		db:       dbPool,
		blobs:    s3Client,
		httpSrv:  httpSrv,
		router:   r,
		mCounter: mCounter,
		mCache:   metrics.NewCacheCounter(),
		mSweep:   metrics.NewSweepDuration(),
	}

	// rabbitMQ, optional
	if cfg.MQEnabled() {
		rabbitDsn, err := cfg.AMQPDSN()
		if err != nil {
			logger.Fatal("RabbitMQ config error", zap.Error(err))
		}
		rbMQ := mq.New(cfg.MQ, logger)
		if err = rbMQ.Connect(ctx, rabbitDsn); err != nil {
			logger.Fatal("failed to connect to rabbitMQ", zap.Error(err))
		}
		if err = rbMQ.Init(); err != nil {
			logger.Fatal("failed init rabbitMQ", zap.Error(err))
		}
		rmqConsumer := rmqconsumer.New(cfg.MQ, logger, rbMQ.GetConn())
		if err = rmqConsumer.Connect(rabbitDsn); err != nil {
			logger.Fatal("failed to connect rabbitMQ consumer", zap.Error(err))
		}
		if err = rmqConsumer.Init(); err != nil {
			logger.Fatal("failed to init rabbitMQ consumer", zap.Error(err))
		}
		app.mq = rbMQ
		app.mqConsumer = rmqConsumer
	} else {
		logger.Info("rabbitMQ not configured, lifecycle events disabled")
	}

	// redis, optional: sweeping works without the lease
	if cfg.RedisEnabled() {
		rdb, err := lock.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, sweeping without a lease", zap.Error(err))
		} else {
			app.redis = rdb
		}
	}

	return app, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.mq != nil && a.mq.GetConn() != nil {
		_ = a.mq.GetConn().Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// Run - The central place to launch and manage our application and
// parallel processes through a single context.
func (a *App) Run(ctx context.Context) error {
	// context with os signals cancel chan
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting "+a.cfg.App.Name, zap.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server "+a.cfg.App.Name+" error: %w", err)
		}

		return nil
	})

	if a.sweeper != nil {
		g.Go(func() error {
			a.sweeper.Run(ctx)
			return nil
		})
	}

	if a.mq != nil {
		g.Go(func() error {
			a.mq.PublisherWorker(ctx)
			return nil
		})
	}

	if a.mqConsumer != nil {
		g.Go(func() error {
			a.mqConsumer.DeliveryWorker(ctx)
			return nil
		})
	}

	<-ctx.Done()

	a.logger.Info("shutting down " + a.cfg.App.Name + " gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown "+a.cfg.App.Name+" error", zap.Error(err))
			return err
		}
	}

	if err := g.Wait(); err != nil {
		a.logger.Error(a.cfg.App.Name+" returning an error", zap.Error(err))
		return err
	}

	a.logger.Info(a.cfg.App.Name + " gracefully stopped")

	return nil
}

func (a *App) InitControllers() {
	// repos
	repo := container.NewRepository(a.db)
	if a.cfg.Cache.Size > 0 {
		repo = cache.NewContainerRepository(repo, a.cfg.Cache.Size, a.cfg.Cache.TTL, a.mCache)
	}

	// optional collaborators stay nil interfaces when disabled
	var events ports.EventPublisher
	if a.mq != nil {
		events = a.mq
	}
	var sweepLock ports.SweepLock
	if a.redis != nil {
		sweepLock = lock.NewRedisLease(a.redis, a.logger)
	}

	// services
	clk := clock.System{}
	containerService := services.NewContainerService(a.blobs, repo, events, clk, a.logger, a.mCounter, a.cfg.Upload.Concurrency)
	retrievalService := services.NewRetrievalService(a.blobs, repo, clk, a.logger, a.mCounter)
	a.sweeper = services.NewSweeper(
		repo,
		containerService,
		sweepLock,
		clk,
		a.cfg.Sweep.Interval,
		a.cfg.Sweep.BatchSize,
		a.logger,
		a.mCounter,
		a.mSweep,
	)

	// controllers
	limiter := middleware.NewRateLimiter(a.cfg.Upload.RatePerMinute)
	rest.NewContainerController(
		a.router,
		containerService,
		retrievalService,
		a.cfg.ShareLink,
		a.cfg.Upload.MaxBytes,
		a.logger,
		limiter.Middleware(a.mCounter),
	)

	if a.cfg.AdminEnabled() {
		jwtService := jwt.New(a.cfg.App.JWTSecret)
		authService := services.NewAuthService(jwtService, a.cfg.App.AdminEmail, a.cfg.App.AdminPasswordHash)
		rest.NewAuthController(a.router, a.logger, authService)
		rest.NewAdminController(a.router, a.sweeper, a.logger, jwtService)
	} else {
		a.logger.Info("operator credentials not configured, admin endpoints disabled")
	}

	// ops
	a.router.GET(rest.RouteHealth, func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.Ping(ctx); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	a.router.GET(rest.RouteMetrics, gin.WrapH(promhttp.Handler()))
}

func (a *App) Logger() *zap.Logger { return a.logger }
