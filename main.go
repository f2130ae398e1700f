package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/common/logger"
	"github.com/Vaibhavdev309/tapestry/common/middleware"
	"github.com/Vaibhavdev309/tapestry/controllers"
	"github.com/Vaibhavdev309/tapestry/database"
	"github.com/Vaibhavdev309/tapestry/kafka"
	"github.com/Vaibhavdev309/tapestry/models"
	awspkg "github.com/Vaibhavdev309/tapestry/pkg/aws"
	"github.com/Vaibhavdev309/tapestry/providers"
	"github.com/Vaibhavdev309/tapestry/repository"
	"github.com/Vaibhavdev309/tapestry/routes"
	"github.com/Vaibhavdev309/tapestry/sender"
	"github.com/Vaibhavdev309/tapestry/services"
)

const serviceName = "storefront-api"

func main() {
	_ = godotenv.Load()
	log := logger.Initialize(os.Getenv("APP_ENV"))
	defer log.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("Config load failed", zap.Error(err))
	}
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Stores ---
	mongoClient, db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		log.Fatal("MongoDB connection failed", zap.Error(err))
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatal("Failed to create MongoDB indexes", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	// --- AWS (CloudWatch metrics, SNS) ---
	var (
		metricsClient *awspkg.MetricsClient
		snsClient     *awspkg.SNSClient
	)
	if cfg.CloudWatchEnabled || cfg.SNSOrderTopicARN != "" {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Warn("AWS config load failed, metrics and SNS disabled (non-fatal)", zap.Error(err))
		} else {
			metricsClient = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
			if cfg.SNSOrderTopicARN != "" {
				snsClient = awspkg.NewSNSClient(awsCfg)
			}
		}
	}

	// --- Order events ---
	var publishers services.MultiPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log)
		defer producer.Close()
		publishers = append(publishers, producer)
	}
	if snsClient != nil {
		publishers = append(publishers, services.NewSNSEventPublisher(snsClient, cfg.SNSOrderTopicARN))
	}
	var publisher services.EventPublisher = publishers
	if len(publishers) == 0 {
		publisher = services.NewNoopPublisher()
	}

	// --- Notification outbox ---
	var notifier services.Notifier = services.NewDiscardNotifier(log)
	notifications := services.NewNotificationService(nil)
	if cfg.DatabaseURL != "" {
		pgDB, err := database.ConnectPostgres(cfg.DatabaseURL, log, &models.NotificationJob{})
		if err != nil {
			log.Fatal("PostgreSQL connection failed", zap.Error(err))
		}
		defer database.ClosePostgres(pgDB)

		notificationRepo := repository.NewNotificationRepository(pgDB)
		notifier = services.NewOutboxNotifier(notificationRepo, cfg.NotificationMaxAttempts, log)
		notifications = services.NewNotificationService(notificationRepo)

		worker, err := services.NewNotificationWorker(notificationRepo, newEmailSender(cfg, log), cfg.NotificationPollInterval, metricsClient, log)
		if err != nil {
			log.Fatal("Failed to start notification worker", zap.Error(err))
		}
		go worker.Run(ctx)
	} else {
		log.Warn("DATABASE_URL not set, notifications are disabled")
	}

	// --- Services ---
	productRepo := repository.NewMongoProductRepository(db)
	orderRepo := repository.NewMongoOrderRepository(db)
	priceRequestRepo := repository.NewMongoPriceRequestRepository(db)
	userRepo := repository.NewMongoUserRepository(db)
	cartRepo := repository.NewRedisCartRepository(redisClient, cfg.CartTTL)

	inventoryService := services.NewInventoryService(productRepo, metricsClient, log)
	productService := services.NewProductService(productRepo, inventoryService, log)
	cartService := services.NewCartService(cartRepo, productService, log)
	priceRequestService := services.NewPriceRequestService(priceRequestRepo, productRepo, notifier, log)
	orderService := services.NewOrderService(orderRepo, priceRequestService, cartRepo, inventoryService, notifier, publisher, metricsClient, log)
	paymentService := services.NewPaymentService(
		providers.NewRazorpayProvider(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		orderService,
		services.PaymentConfig{
			KeyID:         cfg.RazorpayKeyID,
			KeySecret:     cfg.RazorpayKeySecret,
			WebhookSecret: cfg.RazorpayWebhookSecret,
		},
		notifier, publisher, metricsClient, log,
	)
	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	userService := services.NewUserService(userRepo, tokenService, services.AdminCredentials{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}, notifier, log)

	if cfg.RazorpayWebhookSecret == "" {
		log.Warn("RAZORPAY_WEBHOOK_SECRET not set, webhooks will be rejected")
	}

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.SecurityHeaders())
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware())

	loginLimiter := middleware.NewRateLimiter(ctx, rate.Every(12*time.Second), 5, 10*time.Minute)

	routes.RegisterRoutes(r, routes.Controllers{
		User:         controllers.NewUserController(userService, log),
		Product:      controllers.NewProductController(productService, log),
		Cart:         controllers.NewCartController(cartService, log),
		Order:        controllers.NewOrderController(orderService, log),
		PriceRequest: controllers.NewPriceRequestController(priceRequestService, log),
		Payment:      controllers.NewPaymentController(paymentService, log),
		Inventory:    controllers.NewInventoryController(inventoryService, log),
		Notification: controllers.NewNotificationController(notifications, log),
	}, tokenService, loginLimiter.Middleware())

	r.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"mongo": "up", "redis": "up"}
		status := http.StatusOK
		if err := mongoClient.Ping(hctx, nil); err != nil {
			checks["mongo"], status = "down", http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(hctx).Err(); err != nil {
			checks["redis"], status = "down", http.StatusServiceUnavailable
		}
		if status != http.StatusOK {
			c.JSON(status, gin.H{"status": "DEGRADED", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "checks": checks})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Info("Storefront API starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Storefront API...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Storefront API stopped gracefully")
}

// newEmailSender uses SMTP when a host is configured and logs messages otherwise.
func newEmailSender(cfg *Config, log *zap.Logger) sender.EmailSender {
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		return sender.NewLogSender(log)
	}
	smtp, err := sender.NewSMTPSender(sender.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		log.Warn("SMTP sender misconfigured, falling back to log sender", zap.Error(err))
		return sender.NewLogSender(log)
	}
	return smtp
}
