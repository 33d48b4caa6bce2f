package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/configs"
	"voicedesk-backend-go/internal/api"
	"voicedesk-backend-go/internal/config"
	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/middleware"
	"voicedesk-backend-go/internal/payments"
	"voicedesk-backend-go/internal/voiceprovider"
	"voicedesk-backend-go/pkg/cache"
	"voicedesk-backend-go/pkg/mailer"
	"voicedesk-backend-go/pkg/messagequeue"
)

func main() {
	// --- 1. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Initialize Logger (Zap) ---
	var zapLogger *zap.Logger
	if appConfig.IsRelease() {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Application configuration loaded", zap.String("authMode", appConfig.AuthMode))

	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelInitCtx()

	// --- 3. Connect to MongoDB ---
	mongoDB, err := db.Connect(initCtx, appConfig.MongoURI, appConfig.MongoDatabase)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to MongoDB", zap.Error(err))
	}
	if err := mongoDB.EnsureIndexes(initCtx, zapLogger); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to ensure MongoDB indexes", zap.Error(err))
	}
	zapLogger.Info("MongoDB connected", zap.String("database", appConfig.MongoDatabase))

	// --- 4. Load Plan Catalog ---
	plans, err := configs.LoadPlans(appConfig.PlansFile)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load plan catalog", zap.Error(err))
	}
	planCatalog := core.NewPlanCatalog(plans)
	zapLogger.Info("Plan catalog loaded", zap.Int("plans", len(plans)))

	// --- 5. Initialize Firebase Admin SDK (optional) ---
	var fb *db.Firebase
	if appConfig.FirebaseConfigured() {
		fb, err = db.InitFirebase(initCtx, appConfig, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
		}
	}

	// --- 6. Initialize Repositories ---
	userRepo := db.NewMongoUserRepository(mongoDB)
	invoiceRepo := db.NewMongoInvoiceRepository(mongoDB)
	transactionRepo := db.NewMongoTransactionRepository(mongoDB)
	clientRepo := db.NewMongoClientRepository(mongoDB)
	assistantRepo := db.NewMongoAssistantRepository(mongoDB)
	phoneNumberRepo := db.NewMongoPhoneNumberRepository(mongoDB)
	var auditRepo db.AuditRepository
	if fb != nil && fb.Firestore != nil {
		auditRepo = db.NewFirestoreAuditRepository(fb.Firestore, zapLogger)
		zapLogger.Info("Audit trail stored in Firestore")
	} else {
		auditRepo = db.NewMongoAuditRepository(mongoDB)
	}

	// --- 7. Token Verifier ---
	var verifier middleware.TokenVerifier
	switch appConfig.AuthMode {
	case config.AuthModeFirebase:
		if fb == nil || fb.Auth == nil {
			zapLogger.Fatal("CRITICAL_ERROR: AUTH_MODE=firebase but the Firebase Auth client is unavailable")
		}
		verifier = middleware.NewFirebaseVerifier(fb.Auth)
	default:
		verifier = middleware.NewJWTVerifier(appConfig.JWTSecret)
	}

	// --- 8. Cache and Message Queue ---
	var appCache cache.Cache
	if appConfig.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		appCache = redisCache
	} else {
		zapLogger.Warn("REDIS_ADDR not set, using in-process cache")
		appCache = cache.NewMemoryCache()
	}

	var mq *messagequeue.RabbitMQService
	if appConfig.AMQPURL != "" {
		mq, err = messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.AMQPURL}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
	} else {
		zapLogger.Warn("AMQP_URL not set, billing notifications are disabled")
	}

	// --- 9. External Providers ---
	gateway := payments.NewStripeGateway(appConfig.StripeSecretKey, appConfig.StripeWebhookSecret)
	voiceClient := voiceprovider.NewClient(appConfig.VoiceAPIURL, appConfig.VoiceAPIKey, appConfig.VoiceAPIRPS)

	// --- 10. Initialize Services ---
	auditService := core.NewAuditService(auditRepo, zapLogger)
	userService := core.NewUserService(userRepo, planCatalog, auditService, zapLogger)

	billingConfig := core.NewBillingServiceConfig{
		Users:        userRepo,
		Invoices:     invoiceRepo,
		Transactions: transactionRepo,
		Clients:      clientRepo,
		Gateway:      gateway,
		Cache:        appCache,
		EventsQueue:  appConfig.BillingEventsQueue,
		Audit:        auditService,
		Plans:        planCatalog,
		ClientURL:    appConfig.ClientURL,
		Logger:       zapLogger,
	}
	if mq != nil {
		billingConfig.Publisher = mq
	}
	billingService := core.NewBillingService(billingConfig)

	reconcileService := core.NewReconcileService(core.NewReconcileServiceConfig{
		Users:               userRepo,
		Invoices:            invoiceRepo,
		Transactions:        transactionRepo,
		Clients:             clientRepo,
		Gateway:             gateway,
		Plans:               planCatalog,
		EmailDomainFallback: appConfig.ReconcileEmailDomainFallback,
		Logger:              zapLogger,
	})
	assistantService := core.NewAssistantService(core.NewAssistantServiceConfig{
		Assistants:   assistantRepo,
		PhoneNumbers: phoneNumberRepo,
		Users:        userRepo,
		Provider:     voiceClient,
		Cache:        appCache,
		Plans:        planCatalog,
		Audit:        auditService,
		Logger:       zapLogger,
	})
	phoneNumberService := core.NewPhoneNumberService(core.NewPhoneNumberServiceConfig{
		PhoneNumbers: phoneNumberRepo,
		Assistants:   assistantRepo,
		Provider:     voiceClient,
		Plans:        planCatalog,
		Audit:        auditService,
		Logger:       zapLogger,
	})
	statsService := core.NewStatsService(assistantRepo, phoneNumberRepo, planCatalog)
	zapLogger.Info("Core services initialized")

	// --- 11. Billing Notifications Consumer ---
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if mq != nil && appConfig.SMTPHost != "" {
		smtpMailer, err := mailer.New(mailer.Config{
			Host:     appConfig.SMTPHost,
			Port:     appConfig.SMTPPort,
			Username: appConfig.SMTPUser,
			Password: appConfig.SMTPPass,
			From:     appConfig.MailFrom,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Invalid SMTP configuration", zap.Error(err))
		}
		notificationService := core.NewNotificationService(userRepo, smtpMailer, appConfig.ClientURL, zapLogger)
		go func() {
			if err := mq.Consume(consumerCtx, appConfig.BillingEventsQueue, notificationService.HandleBillingEvent); err != nil {
				zapLogger.Error("Billing events consumer stopped", zap.Error(err))
			}
		}()
		zapLogger.Info("Billing events consumer started", zap.String("queue", appConfig.BillingEventsQueue))
	} else if mq != nil {
		zapLogger.Warn("SMTP_HOST not set, billing events are published but not mailed")
	}

	// --- 12. Setup Gin HTTP Engine ---
	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
	router.Use(middleware.Metrics())

	api.SetupRoutes(router, api.SetupRoutesConfig{
		Logger:             zapLogger,
		Verifier:           verifier,
		RateLimiter:        middleware.NewRateLimiter(appConfig.RateLimitRPS, appConfig.RateLimitBurst),
		UserService:        userService,
		AuditService:       auditService,
		BillingService:     billingService,
		ReconcileService:   reconcileService,
		AssistantService:   assistantService,
		PhoneNumberService: phoneNumberService,
		StatsService:       statsService,
	})

	// --- 13. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 14. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	stopConsumer()
	if mq != nil {
		if err := mq.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}
	if err := appCache.Close(); err != nil {
		zapLogger.Warn("Failed to close cache", zap.Error(err))
	}
	if err := fb.Close(); err != nil {
		zapLogger.Warn("Failed to close Firestore client", zap.Error(err))
	}
	if err := mongoDB.Close(shutdownCtx); err != nil {
		zapLogger.Warn("Failed to disconnect MongoDB", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}
