package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Vector   VectorConfig
	Reasoner ReasonerConfig
	Cache    CacheConfig
	Engine   EngineConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// VectorConfig holds vector index (Weaviate) configuration
type VectorConfig struct {
	Host   string `mapstructure:"host"`
	Scheme string `mapstructure:"scheme"`
	APIKey string `mapstructure:"api_key"`
}

// ReasonerConfig holds reasoning-service configuration
type ReasonerConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"` // empty means the provider default
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerMin int           `mapstructure:"rate_per_min"`
}

// CacheConfig holds the three cache tiers' configuration
type CacheConfig struct {
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	LocalPath       string        `mapstructure:"local_path"` // Badger directory; empty disables the local tier
	LocalTTL        time.Duration `mapstructure:"local_ttl"`
	BackendAddr     string        `mapstructure:"backend_addr"` // Redis address; empty disables the backend tier
	BackendPassword string        `mapstructure:"backend_password"`
	BackendDB       int           `mapstructure:"backend_db"`
	BackendTTL      time.Duration `mapstructure:"backend_ttl"`
}

// EngineConfig holds analysis-pipeline tunables. The confidence floor and
// backend TTL are deliberately configuration, not constants; they should be
// tuned against measured false-negative rates.
type EngineConfig struct {
	ConfidenceFloor       float64       `mapstructure:"confidence_floor"`
	MinSimilarity         float64       `mapstructure:"min_similarity"`
	MaxSimilarIngredients int           `mapstructure:"max_similar_ingredients"`
	MaxSimilarProducts    int           `mapstructure:"max_similar_products"`
	ContextCharBudget     int           `mapstructure:"context_char_budget"`
	RetrievalTimeout      time.Duration `mapstructure:"retrieval_timeout"`
	OverallTimeout        time.Duration `mapstructure:"overall_timeout"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/smarties/")

	v.SetEnvPrefix("SMARTIES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Vector index defaults
	v.SetDefault("vector.host", "localhost:8081")
	v.SetDefault("vector.scheme", "http")
	v.SetDefault("vector.api_key", "")

	// Reasoner defaults. Every key needs a default so env-only values are
	// visible to Unmarshal.
	v.SetDefault("reasoner.api_key", "")
	v.SetDefault("reasoner.model", "gpt-4o-mini")
	v.SetDefault("reasoner.base_url", "")
	v.SetDefault("reasoner.timeout", "1500ms")
	v.SetDefault("reasoner.rate_per_min", 60)

	// Cache defaults
	v.SetDefault("cache.session_ttl", "1h")
	v.SetDefault("cache.local_path", "./data/cache")
	v.SetDefault("cache.backend_addr", "")
	v.SetDefault("cache.backend_password", "")
	v.SetDefault("cache.backend_db", 0)
	v.SetDefault("cache.local_ttl", "24h")
	v.SetDefault("cache.backend_ttl", "12h")

	// Engine defaults
	v.SetDefault("engine.confidence_floor", 60.0)
	v.SetDefault("engine.min_similarity", 0.65)
	v.SetDefault("engine.max_similar_ingredients", 5)
	v.SetDefault("engine.max_similar_products", 3)
	v.SetDefault("engine.context_char_budget", 4000)
	v.SetDefault("engine.retrieval_timeout", "300ms")
	v.SetDefault("engine.overall_timeout", "3s")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Reasoner.APIKey == "" {
		return fmt.Errorf("reasoner API key is required (set SMARTIES_REASONER_API_KEY)")
	}

	if config.Vector.Host == "" {
		return fmt.Errorf("vector index host is required")
	}

	if config.Engine.ConfidenceFloor < 0 || config.Engine.ConfidenceFloor > 100 {
		return fmt.Errorf("confidence floor must be within [0,100], got: %g", config.Engine.ConfidenceFloor)
	}

	if config.Engine.MinSimilarity < 0 || config.Engine.MinSimilarity > 1 {
		return fmt.Errorf("min similarity must be within [0,1], got: %g", config.Engine.MinSimilarity)
	}

	if config.Reasoner.Timeout >= config.Engine.OverallTimeout {
		return fmt.Errorf("reasoner timeout (%s) must leave headroom inside the overall budget (%s)",
			config.Reasoner.Timeout, config.Engine.OverallTimeout)
	}

	return nil
}
