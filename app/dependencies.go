package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/promptpilot/llm-gateway/config"
	"github.com/promptpilot/llm-gateway/handlers"
	"github.com/promptpilot/llm-gateway/repositories"
	"github.com/promptpilot/llm-gateway/repositories/postgres"
	"github.com/promptpilot/llm-gateway/services/gateway"
	"github.com/promptpilot/llm-gateway/services/providers"
	"github.com/promptpilot/llm-gateway/services/providers/anthropic"
	"github.com/promptpilot/llm-gateway/services/providers/cohere"
	"github.com/promptpilot/llm-gateway/services/providers/openai"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory, nil when no call log store is configured
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	APICalls repositories.APICallRepository

	// Services
	Gateway *gateway.Service

	// Handlers
	LLMHandler    *handlers.LLMHandler
	HealthHandler *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL call log when configured
	if cfg.Database.Enabled() {
		if err := deps.initDatabase(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		logger.Info("call log store disabled, DATABASE_URL not set")
	}

	// Initialize gateway with every vendor adapter
	deps.Gateway = NewGateway(cfg.Providers, logger)

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.Int("configured_providers", len(deps.Gateway.ConfiguredProviders())))
	return deps, nil
}

// NewGateway builds the execution gateway from provider configuration.
// Adapters exist for every vendor; the credential check decides which are usable.
func NewGateway(cfg config.ProvidersConfig, logger *zap.Logger) *gateway.Service {
	credentials := gateway.StaticCredentials{
		providers.OpenAI:    cfg.OpenAI.APIKey,
		providers.Anthropic: cfg.Anthropic.APIKey,
		providers.Cohere:    cfg.Cohere.APIKey,
	}

	adapters := []providers.Adapter{
		openai.NewAdapter(providerConfig(cfg.OpenAI, cfg)),
		anthropic.NewAdapter(providerConfig(cfg.Anthropic, cfg)),
		cohere.NewAdapter(providerConfig(cfg.Cohere, cfg)),
	}

	for _, p := range []providers.ProviderID{providers.OpenAI, providers.Anthropic, providers.Cohere} {
		if credentials.HasCredential(p) {
			logger.Info("provider configured", zap.String("provider", p.String()))
		} else {
			logger.Warn("provider API key not set", zap.String("provider", p.String()))
		}
	}

	return gateway.NewService(credentials, adapters, logger,
		gateway.WithRequestTimeout(cfg.RequestTimeout))
}

func providerConfig(p config.ProviderConfig, cfg config.ProvidersConfig) providers.ProviderConfig {
	return providers.ProviderConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Timeout: cfg.RequestTimeout,
	}
}

// initDatabase initializes the PostgreSQL connection, schema and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.APICalls = factory.NewRepositories().APICalls

	d.Logger.Info("call log store initialized",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

func (d *Dependencies) initHandlers() {
	// A nil *postgres.DB must not become a non-nil interface
	var db handlers.DatabaseChecker
	if d.DB != nil {
		db = d.DB
	}

	d.LLMHandler = handlers.NewLLMHandler(d.Gateway, d.APICalls, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(db, d.Gateway, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
