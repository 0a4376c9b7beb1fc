package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/the-abed/zap-shift-server/awsclient"
	"github.com/the-abed/zap-shift-server/config"
	"github.com/the-abed/zap-shift-server/controllers"
	"github.com/the-abed/zap-shift-server/database"
	"github.com/the-abed/zap-shift-server/logger"
	"github.com/the-abed/zap-shift-server/metrics"
	"github.com/the-abed/zap-shift-server/middleware"
	"github.com/the-abed/zap-shift-server/repository"
	"github.com/the-abed/zap-shift-server/routes"
	"github.com/the-abed/zap-shift-server/services"
	"go.uber.org/zap"
)

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher awsclient.SNSPublisher
	if cfg.UseAWSSecrets || cfg.PaymentSNSTopicARN != "" {
		awsCfg, err := awsclient.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatal("Failed to load AWS config", zap.Error(err))
		}
		if cfg.UseAWSSecrets {
			if err := cfg.ApplySecrets(ctx, awsclient.NewSecretsClient(awsCfg)); err != nil {
				log.Fatal("Failed to read secrets", zap.Error(err))
			}
		}
		if cfg.PaymentSNSTopicARN != "" {
			publisher = awsclient.NewSNSClient(awsCfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	mongo, err := database.Connect(ctx, cfg.MongoURI(), cfg.DBName, log)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongo.Close(); err != nil {
			log.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}()

	checks := map[string]controllers.HealthCheck{"mongo": mongo.Ping}
	m := metrics.New()
	paymentOpts := []services.PaymentOption{
		services.WithMetrics(m),
		services.WithEvents(publisher, cfg.PaymentSNSTopicARN),
	}

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = redisPing(rdb)
		paymentOpts = append(paymentOpts, services.WithLock(services.NewRedisConfirmationLock(rdb, cfg.LockTTL)))
	}

	parcelRepo := repository.NewMongoParcelRepository(mongo.DB)
	paymentRepo := repository.NewMongoPaymentRepository(mongo.DB)
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.SiteDomain)

	parcelService := services.NewParcelService(parcelRepo, log)
	paymentService := services.NewPaymentService(parcelRepo, paymentRepo, stripeSvc, log, paymentOpts...)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.AllowedOrigin),
		middleware.RateLimit(ctx, cfg.RateLimitPerMinute),
		middleware.Timeout(cfg.RequestTimeout),
	)

	routes.RegisterRoutes(r, routes.Controllers{
		Health:   controllers.NewHealthController(checks),
		Parcels:  controllers.NewParcelController(parcelService),
		Payments: controllers.NewPaymentController(paymentService, log),
	}, routes.Options{
		WebhookEnabled: cfg.WebhookEnabled(),
		Metrics:        m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	log.Info("Zap Shift server started",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Bool("webhook", cfg.WebhookEnabled()),
		zap.Bool("confirmation_lock", cfg.RedisURL != ""),
		zap.Int("pid", os.Getpid()),
	)
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited cleanly")
}

func redisPing(rdb *redis.Client) controllers.HealthCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
