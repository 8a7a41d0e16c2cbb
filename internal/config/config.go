package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds engine configuration. Values come from an optional YAML file
// (CONFIG_PATH, default config.yaml) overridden by environment variables.
type Config struct {
	Env         string `yaml:"env"`
	DatabaseURL string `yaml:"database_url"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	DefaultProvider string `yaml:"default_provider"`
	FastModel       string `yaml:"fast_model"`
	PremiumModel    string `yaml:"premium_model"`
	PricingPath     string `yaml:"pricing_path"`

	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	EmbeddingAPIKey  string `yaml:"embedding_api_key"`
	EmbeddingModel   string `yaml:"embedding_model"`

	VectorStore      string `yaml:"vector_store"`
	QdrantBaseURL    string `yaml:"qdrant_base_url"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`

	WorkerCount      int `yaml:"worker_count"`
	QueueCapacity    int `yaml:"queue_capacity"`
	ProviderMaxCalls int `yaml:"provider_max_calls"`
	ProviderRetries  int `yaml:"provider_retries"`

	// Durations are set via env (Go duration syntax), not YAML.
	ProviderWindow time.Duration `yaml:"-"`
	JobStaleAfter  time.Duration `yaml:"-"`

	SweepSchedule string `yaml:"sweep_schedule"`

	AnonSalt           string `yaml:"anon_salt"`
	AnonK              int    `yaml:"anon_k"`
	AnonLevel          string `yaml:"anon_level"`
	PseudonymCachePath string `yaml:"pseudonym_cache_path"`

	MinClusterSize int `yaml:"min_cluster_size"`
	ResponseCap    int `yaml:"response_cap"`
	MaxTokens      int `yaml:"max_tokens"`

	ResponseCacheTTL time.Duration `yaml:"-"`
}

// Load reads configuration from the optional YAML file and environment
// variables, applying defaults where neither provides a value.
func Load() Config {
	// Best-effort load of local .env for dev convenience.
	_ = godotenv.Load()

	var cfg Config
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("parse %s: %v", configPath, err)
		}
	}

	envOverride(&cfg.Env, "ENV")
	envOverride(&cfg.DatabaseURL, "DATABASE_URL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	envOverride(&cfg.DefaultProvider, "LLM_PROVIDER")
	envOverride(&cfg.FastModel, "FAST_MODEL")
	envOverride(&cfg.PremiumModel, "PREMIUM_MODEL")
	envOverride(&cfg.PricingPath, "PRICING_PATH")
	envOverride(&cfg.EmbeddingBaseURL, "EMBEDDING_BASE_URL")
	envOverride(&cfg.EmbeddingAPIKey, "EMBEDDING_API_KEY")
	envOverride(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	envOverride(&cfg.VectorStore, "VECTOR_STORE")
	envOverride(&cfg.QdrantBaseURL, "QDRANT_BASE_URL")
	envOverride(&cfg.QdrantAPIKey, "QDRANT_API_KEY")
	envOverride(&cfg.QdrantCollection, "QDRANT_COLLECTION")
	envOverrideInt(&cfg.WorkerCount, "WORKER_COUNT")
	envOverrideInt(&cfg.QueueCapacity, "QUEUE_CAPACITY")
	envOverrideInt(&cfg.ProviderMaxCalls, "PROVIDER_MAX_CALLS")
	envOverrideDuration(&cfg.ProviderWindow, "PROVIDER_WINDOW")
	envOverrideInt(&cfg.ProviderRetries, "PROVIDER_RETRIES")
	envOverrideDuration(&cfg.JobStaleAfter, "JOB_STALE_AFTER")
	envOverride(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envOverride(&cfg.AnonSalt, "ANON_SALT")
	envOverrideInt(&cfg.AnonK, "ANON_K")
	envOverride(&cfg.AnonLevel, "ANON_LEVEL")
	envOverride(&cfg.PseudonymCachePath, "PSEUDONYM_CACHE_PATH")
	envOverrideInt(&cfg.MinClusterSize, "MIN_CLUSTER_SIZE")
	envOverrideInt(&cfg.ResponseCap, "RESPONSE_CAP")
	envOverrideInt(&cfg.MaxTokens, "MAX_TOKENS")
	envOverrideDuration(&cfg.ResponseCacheTTL, "RESPONSE_CACHE_TTL")

	applyDefaults(&cfg)

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required in production")
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	cfg.Env = normalizeEnv(cfg.Env)
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
	if cfg.EmbeddingBaseURL == "" {
		cfg.EmbeddingBaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.VectorStore == "" {
		cfg.VectorStore = "memory"
	}
	if cfg.QdrantCollection == "" {
		cfg.QdrantCollection = "survey_responses"
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 64
	}
	if cfg.ProviderMaxCalls <= 0 {
		cfg.ProviderMaxCalls = 30
	}
	if cfg.ProviderWindow <= 0 {
		cfg.ProviderWindow = time.Minute
	}
	if cfg.ProviderRetries <= 0 {
		cfg.ProviderRetries = 3
	}
	if cfg.JobStaleAfter <= 0 {
		cfg.JobStaleAfter = 30 * time.Minute
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 1m"
	}
	if cfg.AnonSalt == "" {
		cfg.AnonSalt = "survey-insights-dev-salt"
	}
	if cfg.AnonK <= 0 {
		cfg.AnonK = 2
	}
	if cfg.AnonLevel == "" {
		cfg.AnonLevel = "full"
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = 3
	}
	if cfg.ResponseCap <= 0 {
		cfg.ResponseCap = 100
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.ResponseCacheTTL <= 0 {
		cfg.ResponseCacheTTL = 5 * time.Minute
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envOverride(target *string, key string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*target = val
	}
}

func envOverrideInt(target *int, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return
	}
	*target = val
}

func envOverrideDuration(target *time.Duration, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config env %s invalid duration: %v", key, err)
		return
	}
	*target = val
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	default:
		return "development"
	}
}
