package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	// EmbeddingProvider is "ollama" or "openai".
	EmbeddingProvider string
	OllamaURL         string
	OllamaEmbedModel  string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIEmbedModel  string
	EmbedBatchSize    int

	// VectorBackend is "qdrant" or "bolt".
	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	BoltIndexPath    string

	// Optional collaborators: empty disables them.
	PostgresDSN string
	NATSURL     string
	NATSSubject string

	RateLimitRPS   float64
	RateLimitBurst int

	ResilienceEnabled      bool
	RetryMaxAttempts       int
	RetryInitialBackoff    time.Duration
	RetryMaxBackoff        time.Duration
	BreakerMinRequests     int
	BreakerFailureRatio    float64
	BreakerOpenTimeout     time.Duration
	BreakerHalfOpenMaxCall int

	PolicyFile string
	Policy     PolicyConfig
}

// PolicyConfig mirrors the retrieval policy knobs. It can come from a YAML
// file; environment variables win over the file.
type PolicyConfig struct {
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	FocusedTopK          int     `yaml:"focused_top_k"`
	ExplorationTopK      int     `yaml:"exploration_top_k"`
	ExplorationThreshold float64 `yaml:"exploration_threshold"`
	ExplorationMinScore  float64 `yaml:"exploration_min_score"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		SimilarityThreshold:  0.25,
		FocusedTopK:          3,
		ExplorationTopK:      6,
		ExplorationThreshold: 0.15,
		ExplorationMinScore:  0.20,
	}
}

// Load reads .env (if present), then the environment, then the optional
// retrieval policy file.
func Load() (Config, error) {
	if err := godotenv.Load(mustEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		EmbeddingProvider: strings.ToLower(mustEnv("EMBEDDING_PROVIDER", "ollama")),
		OllamaURL:         mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel:  mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OpenAIBaseURL:     mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:      mustEnv("OPENAI_API_KEY", ""),
		OpenAIEmbedModel:  mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		EmbedBatchSize:    mustEnvInt("EMBED_BATCH_SIZE", 64),

		VectorBackend:    strings.ToLower(mustEnv("VECTOR_BACKEND", "qdrant")),
		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "news_articles"),
		BoltIndexPath:    mustEnv("BOLT_INDEX_PATH", "./data/news_index.db"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),
		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "news.retrieval.completed"),

		RateLimitRPS:   mustEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: mustEnvInt("RATE_LIMIT_BURST", 20),

		ResilienceEnabled:      mustEnvBool("RESILIENCE_ENABLED", true),
		RetryMaxAttempts:       mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff:    mustEnvDuration("RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		RetryMaxBackoff:        mustEnvDuration("RETRY_MAX_BACKOFF", 400*time.Millisecond),
		BreakerMinRequests:     mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:    mustEnvFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeout:     mustEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		BreakerHalfOpenMaxCall: mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 2),

		PolicyFile: mustEnv("RETRIEVAL_POLICY_FILE", ""),
	}

	policy := DefaultPolicyConfig()
	if cfg.PolicyFile != "" {
		fromFile, err := LoadPolicyFile(cfg.PolicyFile, policy)
		if err != nil {
			return Config{}, err
		}
		policy = fromFile
	}
	cfg.Policy = PolicyConfig{
		SimilarityThreshold:  mustEnvFloat("SIMILARITY_THRESHOLD", policy.SimilarityThreshold),
		FocusedTopK:          mustEnvInt("FOCUSED_TOP_K", policy.FocusedTopK),
		ExplorationTopK:      mustEnvInt("EXPLORATION_TOP_K", policy.ExplorationTopK),
		ExplorationThreshold: mustEnvFloat("EXPLORATION_THRESHOLD", policy.ExplorationThreshold),
		ExplorationMinScore:  mustEnvFloat("EXPLORATION_MIN_SCORE", policy.ExplorationMinScore),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPolicyFile overlays the keys present in a YAML file onto base.
func LoadPolicyFile(path string, base PolicyConfig) (PolicyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("read retrieval policy file: %w", err)
	}
	out := base
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return PolicyConfig{}, fmt.Errorf("parse retrieval policy file %s: %w", path, err)
	}
	return out, nil
}

func (c Config) validate() error {
	switch c.EmbeddingProvider {
	case "ollama":
	case "openai":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q (want ollama or openai)", c.EmbeddingProvider)
	}
	switch c.VectorBackend {
	case "qdrant", "bolt":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q (want qdrant or bolt)", c.VectorBackend)
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
