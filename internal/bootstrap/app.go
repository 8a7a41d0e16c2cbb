package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"survey-insights/internal/anonymize"
	"survey-insights/internal/config"
	"survey-insights/internal/consent"
	"survey-insights/internal/embedding"
	openaiembed "survey-insights/internal/embedding/openai"
	"survey-insights/internal/jobs"
	"survey-insights/internal/provider"
	"survey-insights/internal/responses"
	"survey-insights/internal/shared/storage/db"
	"survey-insights/internal/vectorstore"
	memstore "survey-insights/internal/vectorstore/memory"
	qdrantstore "survey-insights/internal/vectorstore/qdrant"
)

// App holds the shared dependencies of the worker process.
type App struct {
	Config       config.Config
	DB           *sql.DB
	Store        jobs.Store
	Responses    *responses.CachedRepo
	Consent      consent.Registry
	Gate         *anonymize.Gate
	Providers    *provider.Registry
	Embedder     embedding.Embedder
	Vectors      vectorstore.Store
	Orchestrator *jobs.Orchestrator
	Janitor      *jobs.Janitor
}

// Build prepares shared dependencies without starting workers.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := provider.NewRegistry(provider.Settings{
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		MaxCalls:        cfg.ProviderMaxCalls,
		Window:          cfg.ProviderWindow,
		Retries:         cfg.ProviderRetries,
		PricingPath:     cfg.PricingPath,
	})
	if err != nil {
		return nil, fmt.Errorf("provider registry: %w", err)
	}

	gate, err := buildGate(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	vectors, err := buildVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Gate:      gate,
		Providers: registry,
		Embedder:  embedder,
		Vectors:   vectors,
	}

	buildStores(app)

	app.Orchestrator = jobs.New(jobs.Deps{
		Store:     app.Store,
		Responses: app.Responses,
		Consent:   app.Consent,
		Gate:      app.Gate,
		Caller:    registry,
		Policy: provider.Policy{
			DefaultProvider: cfg.DefaultProvider,
			FastModel:       cfg.FastModel,
			PremiumModel:    cfg.PremiumModel,
		},
		Embedder: app.Embedder,
		Vectors:  app.Vectors,
	}, jobs.Config{
		Workers:        cfg.WorkerCount,
		QueueCapacity:  cfg.QueueCapacity,
		AnonymizeLevel: anonymize.Level(cfg.AnonLevel),
		KAnonymity:     cfg.AnonK,
		MinClusterSize: cfg.MinClusterSize,
		ResponseCap:    cfg.ResponseCap,
		MaxTokens:      cfg.MaxTokens,
	})
	app.Janitor = jobs.NewJanitor(app.Store, app.Responses, cfg.JobStaleAfter)

	return app, nil
}

// Close releases held resources. Call after the orchestrator has shut down.
func (a *App) Close() {
	if a.Gate != nil {
		if err := a.Gate.Close(); err != nil {
			log.Printf("bootstrap: close pseudonym cache: %v", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("bootstrap: close database: %v", err)
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory stores")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultWorkerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory stores: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStores(app *App) {
	var (
		store   jobs.Store
		repo    responses.Repo
		consReg consent.Registry
	)
	if app.DB != nil {
		store = &jobs.PGStore{DB: app.DB}
		repo = &responses.PGRepo{DB: app.DB}
		consReg = consent.NewPGRegistry(app.DB)
	} else {
		store = jobs.NewMemoryStore()
		repo = responses.NewMemoryRepo()
		consReg = consent.NewMemoryRegistry()
	}

	app.Store = store
	app.Responses = responses.NewCachedRepo(repo, app.Config.ResponseCacheTTL)
	app.Consent = consReg
}

func buildGate(cfg config.Config) (*anonymize.Gate, error) {
	if strings.TrimSpace(cfg.PseudonymCachePath) == "" {
		return anonymize.NewGate(cfg.AnonSalt, nil), nil
	}
	cache, err := anonymize.NewBoltCache(cfg.PseudonymCachePath)
	if err != nil {
		return nil, fmt.Errorf("open pseudonym cache: %w", err)
	}
	return anonymize.NewGate(cfg.AnonSalt, cache), nil
}

func buildEmbedder(cfg config.Config) (embedding.Embedder, error) {
	if strings.TrimSpace(cfg.EmbeddingAPIKey) == "" {
		log.Printf("bootstrap: EMBEDDING_API_KEY empty; using local hash embedder")
		return embedding.NewHashEmbedder(0), nil
	}
	client, err := openaiembed.NewClient(openaiembed.Config{
		BaseURL: cfg.EmbeddingBaseURL,
		APIKey:  cfg.EmbeddingAPIKey,
		Model:   cfg.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	return client, nil
}

func buildVectorStore(cfg config.Config) (vectorstore.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.VectorStore)) {
	case "qdrant":
		if strings.TrimSpace(cfg.QdrantBaseURL) == "" {
			return nil, fmt.Errorf("VECTOR_STORE=qdrant requires QDRANT_BASE_URL")
		}
		return qdrantstore.NewStore(qdrantstore.Config{
			URL:        cfg.QdrantBaseURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}), nil
	default:
		return memstore.NewStore(), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local":
		return true
	default:
		return false
	}
}
