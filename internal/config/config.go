package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	AI         AI         `mapstructure:"ai"`
	Database   Database   `mapstructure:"database"`
	Vector     Vector     `mapstructure:"vector"`
	Scrape     Scrape     `mapstructure:"scrape"`
	Clustering Clustering `mapstructure:"clustering"`
	Labeling   Labeling   `mapstructure:"labeling"`
	Server     Server     `mapstructure:"server"`
	Logging    Logging    `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Timeout        string  `mapstructure:"timeout"`
	MaxTokens      int32   `mapstructure:"max_tokens"`
	Temperature    float32 `mapstructure:"temperature"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

// Database holds relational store configuration
type Database struct {
	Driver           string `mapstructure:"driver"` // sqlite or postgres
	ConnectionString string `mapstructure:"connection_string"`
	Timeout          string `mapstructure:"timeout"`
	MaxOpenConns     int    `mapstructure:"max_open_conns"`
}

// Vector holds vector index configuration
type Vector struct {
	Backend   string `mapstructure:"backend"` // sqlite or pgvector
	BatchSize int    `mapstructure:"batch_size"`
}

// Scrape holds broadcaster scraping configuration
type Scrape struct {
	Sources     []string `mapstructure:"sources"`
	Timeout     string   `mapstructure:"timeout"`
	RenderWait  string   `mapstructure:"render_wait"`
	Concurrency int      `mapstructure:"concurrency"`
	RateLimit   string   `mapstructure:"rate_limit"`
	UserAgent   string   `mapstructure:"user_agent"`
	Headless    bool     `mapstructure:"headless"`
	LockTimeout string   `mapstructure:"lock_timeout"`
}

// Clustering holds density clustering parameters
type Clustering struct {
	Eps        float64 `mapstructure:"eps"`
	MinSamples int     `mapstructure:"min_samples"`
}

// Labeling holds topic labeling configuration
type Labeling struct {
	Concurrency int    `mapstructure:"concurrency"`
	Timeout     string `mapstructure:"timeout"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
	CORS            CORS   `mapstructure:"cors"`
}

// CORS holds cross-origin settings for the read API
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsdesk")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".newsdesk")

	viper.SetDefault("ai.gemini.model", "gemini-1.5-flash")
	viper.SetDefault("ai.gemini.timeout", "60s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.2)
	viper.SetDefault("ai.gemini.embedding_model", "text-embedding-004")
	viper.SetDefault("ai.gemini.max_retries", 3)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.timeout", "5s")
	viper.SetDefault("database.max_open_conns", 25)

	viper.SetDefault("vector.backend", "sqlite")
	viper.SetDefault("vector.batch_size", 64)

	viper.SetDefault("scrape.sources", []string{"kbs", "mbc", "sbs"})
	viper.SetDefault("scrape.timeout", "20s")
	viper.SetDefault("scrape.render_wait", "15s")
	viper.SetDefault("scrape.concurrency", 4)
	viper.SetDefault("scrape.rate_limit", "250ms")
	viper.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; newsdesk/1.0)")
	viper.SetDefault("scrape.headless", true)
	viper.SetDefault("scrape.lock_timeout", "2m")

	viper.SetDefault("clustering.eps", 0.12)
	viper.SetDefault("clustering.min_samples", 1)

	viper.SetDefault("labeling.concurrency", 4)
	viper.SetDefault("labeling.timeout", "30s")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.cors.enabled", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("database.connection_string", []string{
		"DATABASE_URL",
		"NEWSDESK_DATABASE_URL",
	})

	bindEnvKeys("database.driver", []string{
		"NEWSDESK_DB_DRIVER",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"NEWSDESK_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
		"NEWSDESK_LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.App.Debug {
		config.Logging.Level = "debug"
	}
	config.Database.Driver = strings.ToLower(config.Database.Driver)
	config.Vector.Backend = strings.ToLower(config.Vector.Backend)

	durations := map[string]string{
		"ai.gemini.timeout":       config.AI.Gemini.Timeout,
		"database.timeout":        config.Database.Timeout,
		"scrape.timeout":          config.Scrape.Timeout,
		"scrape.render_wait":      config.Scrape.RenderWait,
		"scrape.rate_limit":       config.Scrape.RateLimit,
		"scrape.lock_timeout":     config.Scrape.LockTimeout,
		"labeling.timeout":        config.Labeling.Timeout,
		"server.read_timeout":     config.Server.ReadTimeout,
		"server.write_timeout":    config.Server.WriteTimeout,
		"server.shutdown_timeout": config.Server.ShutdownTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	var errors []string

	switch config.Database.Driver {
	case "sqlite":
	case "postgres":
		if config.Database.ConnectionString == "" {
			errors = append(errors, "PostgreSQL requires a connection string. Set DATABASE_URL or database.connection_string")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown database driver: %s. Supported: sqlite, postgres", config.Database.Driver))
	}

	switch config.Vector.Backend {
	case "sqlite":
	case "pgvector":
		if config.Database.Driver != "postgres" {
			errors = append(errors, "pgvector backend requires database.driver postgres")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown vector backend: %s. Supported: sqlite, pgvector", config.Vector.Backend))
	}

	if config.Vector.BatchSize < 1 {
		errors = append(errors, "vector.batch_size must be at least 1")
	}
	if config.Clustering.Eps <= 0 || config.Clustering.Eps > 2 {
		errors = append(errors, fmt.Sprintf("clustering.eps must be in (0, 2], got %v", config.Clustering.Eps))
	}
	if config.Clustering.MinSamples < 1 {
		errors = append(errors, "clustering.min_samples must be at least 1")
	}
	if config.Scrape.Concurrency < 1 {
		errors = append(errors, "scrape.concurrency must be at least 1")
	}
	if config.Labeling.Concurrency < 1 {
		errors = append(errors, "labeling.concurrency must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireGemini reports a helpful error when no Gemini API key is configured.
// Only commands that call the model need it.
func (c *Config) RequireGemini() error {
	if !isValidAPIKey(c.AI.Gemini.APIKey) {
		return fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://aistudio.google.com/app/apikey")
	}
	return nil
}

// Duration parses a validated duration string, returning fallback when empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetApp() App               { return Get().App }
func GetAI() AI                 { return Get().AI }
func GetDatabase() Database     { return Get().Database }
func GetScrape() Scrape         { return Get().Scrape }
func GetClustering() Clustering { return Get().Clustering }
func GetServer() Server         { return Get().Server }
func GetLogging() Logging       { return Get().Logging }
func IsDebugMode() bool         { return Get().App.Debug }

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
