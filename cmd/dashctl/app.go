package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"voicedesk-backend-go/configs"
	"voicedesk-backend-go/internal/config"
	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/payments"
	"voicedesk-backend-go/internal/voiceprovider"
	"voicedesk-backend-go/pkg/cache"
)

type rootOptions struct {
	output  string
	verbose bool
}

// app is the subset of the server wiring the maintenance commands need.
// Audit entries always go to MongoDB here.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	mongo  *db.Mongo

	users      core.UserService
	reconcile  core.ReconcileService
	assistants core.AssistantService
	clients    db.ClientRepository
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	if err := validateOutput(opts.output); err != nil {
		return nil, err
	}
	cfg, err := config.LoadToolConfig()
	if err != nil {
		return nil, err
	}

	logCfg := zap.NewProductionConfig()
	logCfg.Encoding = "console"
	logCfg.OutputPaths = []string{"stderr"}
	if opts.verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	mongoDB, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}

	plans, err := configs.LoadPlans(cfg.PlansFile)
	if err != nil {
		_ = mongoDB.Close(context.Background())
		return nil, err
	}
	catalog := core.NewPlanCatalog(plans)

	userRepo := db.NewMongoUserRepository(mongoDB)
	invoiceRepo := db.NewMongoInvoiceRepository(mongoDB)
	transactionRepo := db.NewMongoTransactionRepository(mongoDB)
	clientRepo := db.NewMongoClientRepository(mongoDB)
	assistantRepo := db.NewMongoAssistantRepository(mongoDB)
	audit := core.NewAuditService(db.NewMongoAuditRepository(mongoDB), logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		mongo:   mongoDB,
		clients: clientRepo,
		users:   core.NewUserService(userRepo, catalog, audit, logger),
		reconcile: core.NewReconcileService(core.NewReconcileServiceConfig{
			Users:               userRepo,
			Invoices:            invoiceRepo,
			Transactions:        transactionRepo,
			Clients:             clientRepo,
			Gateway:             payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
			Plans:               catalog,
			EmailDomainFallback: cfg.ReconcileEmailDomainFallback,
			Logger:              logger,
		}),
		assistants: core.NewAssistantService(core.NewAssistantServiceConfig{
			Assistants:   assistantRepo,
			PhoneNumbers: db.NewMongoPhoneNumberRepository(mongoDB),
			Users:        userRepo,
			Provider:     voiceprovider.NewClient(cfg.VoiceAPIURL, cfg.VoiceAPIKey, cfg.VoiceAPIRPS),
			Cache:        cache.NewMemoryCache(),
			Plans:        catalog,
			Audit:        audit,
			Logger:       logger,
		}),
	}, nil
}

func (a *app) Close() {
	if err := a.mongo.Close(context.Background()); err != nil {
		a.logger.Warn("Failed to disconnect MongoDB", zap.Error(err))
	}
	_ = a.logger.Sync()
}
