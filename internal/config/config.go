// ABOUTME: Centralized configuration for artmatch
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Embedder names
const (
	EmbedderHistogram = "histogram"
	EmbedderOpenAI    = "openai"
)

// Store backend names
const (
	StoreSQLite = "sqlite"
	StoreCharm  = "charm"
)

// DefaultStrapiURL is the gallery's content API
const DefaultStrapiURL = "https://puluyanartgallery.onrender.com"

// Config holds all configuration for artmatch
type Config struct {
	// Catalog settings
	StrapiURL   string
	StrapiToken string
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration

	// Matching settings
	MatchThreshold float64
	Embedder       string

	// OpenAI settings
	OpenAIKey      string
	VisionModel    string
	EmbeddingModel string

	// Scan loop settings
	PollInterval  time.Duration
	NoMatchWindow time.Duration

	// Reference building
	IndexConcurrency int

	// Storage settings
	Store       string
	DBPath      string
	CharmHost   string
	CharmDBName string
	AutoSync    bool

	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		StrapiURL:        strings.TrimRight(getEnv("STRAPI_URL", DefaultStrapiURL), "/"),
		StrapiToken:      os.Getenv("STRAPI_TOKEN"),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryDelay:       getEnvDuration("RETRY_DELAY", 2*time.Second),
		MatchThreshold:   getEnvFloat("MATCH_THRESHOLD", 0.7),
		Embedder:         strings.ToLower(getEnv("ARTMATCH_EMBEDDER", EmbedderHistogram)),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		VisionModel:      getEnv("ARTMATCH_VISION_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   getEnv("ARTMATCH_EMBEDDING_MODEL", "text-embedding-3-small"),
		PollInterval:     getEnvDuration("SCAN_POLL_INTERVAL", 3*time.Second),
		NoMatchWindow:    getEnvDuration("SCAN_NO_MATCH_WINDOW", 13*time.Second),
		IndexConcurrency: getEnvInt("INDEX_CONCURRENCY", 4),
		Store:            strings.ToLower(getEnv("ARTMATCH_STORE", StoreSQLite)),
		DBPath:           getEnv("ARTMATCH_DB_PATH", DefaultDBPath()),
		CharmHost:        getEnv("CHARM_HOST", "charm.2389.dev"),
		CharmDBName:      getEnv("CHARM_DB", "artmatch"),
		AutoSync:         getEnvBool("CHARM_AUTO_SYNC", true),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges and cross-field requirements
func (c *Config) Validate() error {
	if c.MatchThreshold < -1 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be between -1 and 1, got %f", c.MatchThreshold)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.IndexConcurrency < 1 || c.IndexConcurrency > 32 {
		return fmt.Errorf("INDEX_CONCURRENCY must be 1-32, got %d", c.IndexConcurrency)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("SCAN_POLL_INTERVAL must be positive, got %v", c.PollInterval)
	}
	if c.NoMatchWindow <= 0 {
		return fmt.Errorf("SCAN_NO_MATCH_WINDOW must be positive, got %v", c.NoMatchWindow)
	}
	switch c.Embedder {
	case EmbedderHistogram:
	case EmbedderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("ARTMATCH_EMBEDDER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("ARTMATCH_EMBEDDER must be %q or %q, got %q", EmbedderHistogram, EmbedderOpenAI, c.Embedder)
	}
	switch c.Store {
	case StoreSQLite, StoreCharm:
	default:
		return fmt.Errorf("ARTMATCH_STORE must be %q or %q, got %q", StoreSQLite, StoreCharm, c.Store)
	}
	if c.StrapiURL == "" {
		return fmt.Errorf("STRAPI_URL cannot be empty")
	}
	return nil
}

// DefaultDataDir returns the artmatch data directory following XDG
func DefaultDataDir() string {
	// Respects XDG_DATA_HOME set after process start (tests)
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "artmatch")
}

// DefaultDBPath returns the default SQLite reference store path
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "artmatch.db")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
